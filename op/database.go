package op

import (
	"encoding/hex"
	"fmt"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/pager"
	"github.com/zeebo/blake3"
)

// DatabaseOp is one database image loaded into memory.
type DatabaseOp struct {
	Source string
	data   []byte
	info   pager.DbInfo
	tables []string
	digest string
}

// OpenDatabase validates the header and schema page of data. source is
// only recorded for reporting.
func OpenDatabase(source string, data []byte) (*DatabaseOp, error) {
	return OpenDigested(source, data, Digest(data))
}

// OpenDigested is OpenDatabase for callers that already hashed data.
func OpenDigested(source string, data []byte, digest string) (*DatabaseOp, error) {
	info, err := pager.ReadDbInfo(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	tables, err := pager.ListTables(data)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s: %w", source, err)
	}

	return &DatabaseOp{
		Source: source,
		data:   data,
		info:   info,
		tables: tables,
		digest: digest,
	}, nil
}

// WithSource returns a copy of op reporting a different source. The image
// and catalog are shared.
func (op *DatabaseOp) WithSource(source string) *DatabaseOp {
	clone := *op
	clone.Source = source
	return &clone
}

// Digest returns the hex BLAKE3 hash of an image.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (op *DatabaseOp) Info() core.DatabaseInfo {
	return core.DatabaseInfo{
		Source:     op.Source,
		PageSize:   op.info.PageSize,
		CellCount:  op.info.CellCount,
		TableCount: len(op.tables),
		Digest:     op.digest,
		Size:       len(op.data),
	}
}

// TableNames returns the user tables in byte order. The slice is a copy.
func (op *DatabaseOp) TableNames() []string {
	return append([]string(nil), op.tables...)
}

func (op *DatabaseOp) Digest() string {
	return op.digest
}

// Bytes returns the raw image. Callers must not modify it.
func (op *DatabaseOp) Bytes() []byte {
	return op.data
}
