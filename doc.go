// Package PagerDB reads the catalog of SQLite-format database images and
// parses SELECT statements against it.
//
// Images are opened from local files, HTTP, S3 or a Git-backed snapshot
// store. Opening an image decodes the 100-byte header and the schema page;
// table contents are never read.
//
// # Quick Start
//
//	persistence, _ := ps.NewMemoryPersistence()
//	instance := PagerDB.Open(persistence)
//	engine := instance.Engine(core.Identity{Name: "App", Email: "app@example.com"})
//
//	engine.Execute(".open sample.db")
//	result, _ := engine.Execute(".tables")
//	result.Display(os.Stdout)
//
//	engine.Execute(".snapshot sample")
//	result, _ = engine.Execute("SELECT name FROM apples WHERE color = 'Red'")
//	result.Display(os.Stdout)
//
// # Packages
//
//   - pager: varints, the file header and the schema page
//   - sql: SELECT lexer, parser and AST
//   - ps: Git-backed snapshot store
//   - op: database and snapshot operations
//   - db: the command engine, remote sources and the catalog cache
package PagerDB
