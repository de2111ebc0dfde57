package pager

import "strings"

const (
	minTextSerialType = 13
	schemaTypeTable   = "table"
)

// ParseSchemaCell decodes one leaf cell of the schema table and returns the
// tbl_name of a table row.
//
// ok is false for anything that is not a well-formed table row: fewer than
// three record fields, a type, name or tbl_name field that is not text, a type other
// than "table", or a field span running past the end of the cell. Invalid
// UTF-8 in the name is replaced rather than rejected.
func ParseSchemaCell(cell []byte) (name string, ok bool) {
	pos := 0
	next := func() (uint64, bool) {
		if pos >= len(cell) {
			return 0, false
		}
		v, n := DecodeVarint(cell[pos:])
		pos += n
		return v, true
	}

	// payload length and rowid
	if _, ok := next(); !ok {
		return "", false
	}
	if _, ok := next(); !ok {
		return "", false
	}

	headerStart := pos
	headerLen, ok := next()
	if !ok {
		return "", false
	}

	var serialTypes []uint64
	for uint64(pos-headerStart) < headerLen {
		st, ok := next()
		if !ok {
			return "", false
		}
		serialTypes = append(serialTypes, st)
	}

	if len(serialTypes) < 3 {
		return "", false
	}

	typeLen, ok := textLength(serialTypes[0])
	if !ok {
		return "", false
	}
	nameLen, ok := textLength(serialTypes[1])
	if !ok {
		return "", false
	}
	tblNameLen, ok := textLength(serialTypes[2])
	if !ok {
		return "", false
	}

	typeEnd := uint64(pos) + typeLen
	if typeEnd > uint64(len(cell)) || string(cell[pos:typeEnd]) != schemaTypeTable {
		return "", false
	}

	size := uint64(len(cell))
	if nameLen > size-typeEnd {
		return "", false
	}
	tblNameStart := typeEnd + nameLen
	if tblNameLen > size-tblNameStart {
		return "", false
	}

	return strings.ToValidUTF8(string(cell[tblNameStart:tblNameStart+tblNameLen]), "\uFFFD"), true
}

// textLength returns the byte length of a text field, or false when the
// serial type is not a text encoding.
func textLength(serialType uint64) (uint64, bool) {
	if serialType < minTextSerialType || serialType%2 == 0 {
		return 0, false
	}
	return (serialType - minTextSerialType) / 2, true
}
