package db

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// SimpleTable renders rows as a boxed text table. Widths are measured in
// runes so table names with non-ASCII characters stay aligned.
type SimpleTable struct {
	writer  io.Writer
	headers []string
	rows    [][]string
}

func NewTable(w io.Writer) *SimpleTable {
	return &SimpleTable{
		writer: w,
		rows:   make([][]string, 0),
	}
}

func (t *SimpleTable) Header(headers []string) {
	t.headers = headers
}

func (t *SimpleTable) Row(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *SimpleTable) Bulk(rows [][]string) {
	t.rows = append(t.rows, rows...)
}

// Render writes the table. An empty table writes nothing.
func (t *SimpleTable) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	widths := t.columnWidths()
	separator := separatorLine(widths)

	fmt.Fprintln(t.writer, separator)

	if len(t.headers) > 0 {
		fmt.Fprintln(t.writer, formatRow(t.headers, widths))
		fmt.Fprintln(t.writer, separator)
	}

	for _, row := range t.rows {
		fmt.Fprintln(t.writer, formatRow(row, widths))
	}

	fmt.Fprintln(t.writer, separator)
}

func (t *SimpleTable) columnWidths() []int {
	numCols := len(t.headers)
	for _, row := range t.rows {
		numCols = max(numCols, len(row))
	}

	widths := make([]int, numCols)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}

	for i := range widths {
		widths[i] = max(widths[i], 1)
	}
	return widths
}

func separatorLine(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

func formatRow(row []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		parts[i] = " " + cell + strings.Repeat(" ", w-utf8.RuneCountInString(cell)+1)
	}
	return "|" + strings.Join(parts, "|") + "|"
}
