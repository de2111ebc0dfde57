package pager

import (
	"encoding/binary"
)

// textSerialType returns the serial type of a text field of n bytes.
func textSerialType(n int) uint64 {
	return uint64(13 + 2*n)
}

// recordCell lays out a leaf cell: payload length, rowid, record header and
// the field bodies in header order.
func recordCell(rowid uint64, serialTypes []uint64, bodies ...[]byte) []byte {
	var types []byte
	for _, st := range serialTypes {
		types = append(types, EncodeVarint(st)...)
	}
	header := append(EncodeVarint(uint64(len(types)+1)), types...)

	payload := append([]byte{}, header...)
	for _, body := range bodies {
		payload = append(payload, body...)
	}

	cell := EncodeVarint(uint64(len(payload)))
	cell = append(cell, EncodeVarint(rowid)...)
	return append(cell, payload...)
}

// schemaCell builds a schema row with text type, name and tbl_name fields
// followed by an integer rootpage and a text sql field.
func schemaCell(rowid uint64, typ, name, tblName string) []byte {
	sqlText := "CREATE TABLE " + tblName + " (id integer)"
	return recordCell(rowid,
		[]uint64{
			textSerialType(len(typ)),
			textSerialType(len(name)),
			textSerialType(len(tblName)),
			1,
			textSerialType(len(sqlText)),
		},
		[]byte(typ), []byte(name), []byte(tblName), []byte{2}, []byte(sqlText),
	)
}

// buildDatabase writes a single-page file: the 100 byte header, a leaf table
// page header at offset 100 and the cells packed against the end of the page.
func buildDatabase(rawPageSize uint16, cells ...[]byte) []byte {
	pageSize := int(rawPageSize)
	if rawPageSize == 1 {
		pageSize = MaxPageSize
	}

	page := make([]byte, pageSize)
	copy(page, "SQLite format 3\x00")
	binary.BigEndian.PutUint16(page[16:], rawPageSize)

	page[HeaderSize] = 0x0d
	binary.BigEndian.PutUint16(page[HeaderSize+cellCountOffset:], uint16(len(cells)))

	end := pageSize
	for i, cell := range cells {
		end -= len(cell)
		copy(page[end:], cell)
		ptr := HeaderSize + cellPointersOffset + i*cellPointerSize
		binary.BigEndian.PutUint16(page[ptr:], uint16(end))
	}
	binary.BigEndian.PutUint16(page[HeaderSize+5:], uint16(end%MaxPageSize))

	return page
}
