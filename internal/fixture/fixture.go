// Package fixture writes real database files through a SQL driver so tests
// can check the format reader against files it did not produce itself.
//
// Build modes follow the driver split used elsewhere:
//   - Default: pure Go modernc.org/sqlite, driver name "sqlite"
//   - -tags cgo_sqlite: mattn/go-sqlite3, driver name "sqlite3" (needs CGO_ENABLED=1)
package fixture

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// DriverName returns the database/sql driver registered by this build.
func DriverName() string {
	return driverName
}

// DriverType returns "purego" or "cgo".
func DriverType() string {
	return driverType
}

// Options control the file layout of a generated database.
type Options struct {
	// PageSize is applied with PRAGMA page_size before any table exists.
	// Zero keeps the driver default.
	PageSize int
}

// Create writes a new database at path and runs statements against it in
// order. The file is closed before Create returns.
func Create(path string, opts Options, statements ...string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create fixture directory: %w", err)
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return fmt.Errorf("failed to open fixture database: %w", err)
	}
	defer db.Close()

	// a single connection keeps the page_size pragma on the connection that
	// creates the first table
	db.SetMaxOpenConns(1)

	if opts.PageSize != 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA page_size = %d", opts.PageSize)); err != nil {
			return fmt.Errorf("failed to set page size: %w", err)
		}
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	return db.Close()
}

// Bytes creates a database in dir and returns its full contents.
func Bytes(dir string, opts Options, statements ...string) ([]byte, error) {
	path := filepath.Join(dir, "fixture.db")
	if err := Create(path, opts, statements...); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// SchemaTables asks the driver itself for the user tables of the database at
// path, sorted by name. Tests compare it with the format reader's answer.
func SchemaTables(path string) ([]string, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT tbl_name FROM sqlite_master
		WHERE type = 'table' AND tbl_name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY tbl_name COLLATE BINARY`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
