package pager

import (
	"sort"
	"strings"
)

const (
	// leaf page header position on the first page
	firstPageHeaderOffset = HeaderSize

	cellCountOffset    = 3
	cellPointersOffset = 8
	cellPointerSize    = 2

	internalTablePrefix = "sqlite_"
)

// DbInfo summarises the first page of a database file.
type DbInfo struct {
	PageSize  uint32
	CellCount uint16
}

// ReadDbInfo returns the page size and the number of cells on the schema page.
func ReadDbInfo(file []byte) (DbInfo, error) {
	header, err := ReadHeader(file)
	if err != nil {
		return DbInfo{}, err
	}

	page := firstPage(file, header)
	if len(page) < firstPageHeaderOffset+cellPointersOffset {
		return DbInfo{}, ErrShortPage
	}

	return DbInfo{
		PageSize:  header.PageSize,
		CellCount: readUint16(page, firstPageHeaderOffset+cellCountOffset),
	}, nil
}

// ListTables returns the user tables named in the schema table, sorted by
// byte value. Internal sqlite_ tables and undecodable cells are left out.
func ListTables(file []byte) ([]string, error) {
	header, err := ReadHeader(file)
	if err != nil {
		return nil, err
	}

	page := firstPage(file, header)
	cells, err := cellPointers(page, firstPageHeaderOffset)
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(cells))
	for _, offset := range cells {
		if int(offset) >= len(page) {
			continue
		}
		name, ok := ParseSchemaCell(page[offset:])
		if !ok || strings.HasPrefix(name, internalTablePrefix) {
			continue
		}
		tables = append(tables, name)
	}

	sort.Strings(tables)
	return tables, nil
}

// firstPage borrows the first page out of the file buffer. A file shorter
// than one page yields what is there.
func firstPage(file []byte, header DbHeader) []byte {
	if uint64(len(file)) < uint64(header.PageSize) {
		return file
	}
	return file[:header.PageSize]
}

// cellPointers reads the cell-pointer array of the leaf page whose header
// starts at headerOffset. Offsets are relative to the start of the page.
func cellPointers(page []byte, headerOffset int) ([]uint16, error) {
	if len(page) < headerOffset+cellPointersOffset {
		return nil, ErrShortPage
	}

	count := int(readUint16(page, headerOffset+cellCountOffset))
	start := headerOffset + cellPointersOffset
	if len(page) < start+count*cellPointerSize {
		return nil, ErrShortPage
	}

	pointers := make([]uint16, count)
	for i := range pointers {
		pointers[i] = readUint16(page, start+i*cellPointerSize)
	}
	return pointers, nil
}
