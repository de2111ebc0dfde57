// Package pager decodes the physical layout of a single-file paged database.
//
// Only the first page is read. That is enough to walk the schema table and
// enumerate user tables; interior pages, overflow pages and index b-trees are
// never followed.
//
// # Header
//
//	header, err := pager.ReadHeader(data[:100])
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(header.PageSize)
//
// # Tables
//
//	tables, err := pager.ListTables(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(strings.Join(tables, " "))
//
// # Row-level skips
//
// ReadHeader and ListTables return errors for structural problems (a page size
// that is not a power of two, a file too short to hold the page header). A
// single schema cell that cannot be decoded, is not a table row, or points
// outside the page is skipped instead, so one bad row never hides the rest of
// the schema.
package pager
