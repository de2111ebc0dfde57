package pager

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the length of the database file header.
	HeaderSize = 100

	// MaxPageSize is the page size encoded on disk as the sentinel value 1.
	MaxPageSize = 65536

	pageSizeOffset = 16
)

var (
	// ErrInvalidFormat is the root of every structural decoding failure.
	ErrInvalidFormat = errors.New("invalid database format")

	ErrShortHeader = fmt.Errorf("%w: file shorter than %d byte header", ErrInvalidFormat, HeaderSize)
	ErrShortPage   = fmt.Errorf("%w: file ends inside the first page header", ErrInvalidFormat)
)

// InvalidFormatError reports a header field that failed validation.
type InvalidFormatError struct {
	Field string
	Value uint32
	Msg   string
}

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("%s: %d", e.Msg, e.Value)
}

func (e *InvalidFormatError) Unwrap() error {
	return ErrInvalidFormat
}

// DbHeader holds the fields of the file header this package needs.
type DbHeader struct {
	PageSize uint32
}

// ReadHeader parses the fixed 100-byte file header.
func ReadHeader(buf []byte) (DbHeader, error) {
	if len(buf) < HeaderSize {
		return DbHeader{}, ErrShortHeader
	}

	raw := readUint16(buf, pageSizeOffset)
	switch {
	case raw == 1:
		return DbHeader{PageSize: MaxPageSize}, nil
	case raw != 0 && raw&(raw-1) == 0:
		return DbHeader{PageSize: uint32(raw)}, nil
	default:
		return DbHeader{}, &InvalidFormatError{
			Field: "page_size",
			Value: uint32(raw),
			Msg:   "page size is not a power of 2",
		}
	}
}

func readUint16(buf []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(buf[offset : offset+2])
}
