package PagerDB

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/db"
	"github.com/nickyhof/PagerDB/internal/fixture"
	"github.com/nickyhof/PagerDB/ps"
	"github.com/nickyhof/PagerDB/sql"
)

// TestFunc is the signature for test functions that work with any persistence
type TestFunc func(t *testing.T, instance *Instance)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

// runWithBothPersistence runs a test function with both memory and file persistence
func runWithBothPersistence(t *testing.T, testFunc TestFunc) {
	t.Run("Memory", func(t *testing.T) {
		persistence, err := ps.NewMemoryPersistence()
		if err != nil {
			t.Fatalf("Failed to initialize memory persistence: %v", err)
		}
		testFunc(t, Open(persistence))
	})

	t.Run("File", func(t *testing.T) {
		persistence, err := ps.NewFilePersistence(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("Failed to initialize file persistence: %v", err)
		}
		testFunc(t, Open(persistence))
	})
}

func createDatabase(t *testing.T, name string, pageSize int, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := fixture.Create(path, fixture.Options{PageSize: pageSize}, statements...); err != nil {
		t.Fatalf("Failed to create %s: %v", name, err)
	}
	return path
}

func execute(t *testing.T, engine *db.Engine, command string) db.Result {
	t.Helper()
	result, err := engine.Execute(command)
	if err != nil {
		t.Fatalf("%s: %v", command, err)
	}
	return result
}

func output(result db.Result) string {
	var b strings.Builder
	result.Display(&b)
	return b.String()
}

// TestIntegrationWorkflow opens a database, snapshots it, replaces it and
// reads both versions back.
func TestIntegrationWorkflow(t *testing.T) {
	runWithBothPersistence(t, func(t *testing.T, instance *Instance) {
		engine := instance.Engine(testIdentity)

		first := createDatabase(t, "first.db", 4096,
			"CREATE TABLE apples (id integer primary key, name text, color text)",
			"CREATE TABLE oranges (id integer primary key, name text, description text)",
		)
		second := createDatabase(t, "second.db", 4096,
			"CREATE TABLE pears (id integer primary key, name text)",
		)

		execute(t, engine, ".open "+first)
		if got := output(execute(t, engine, ".tables")); got != "apples oranges\n" {
			t.Errorf("Expected 'apples oranges', got %q", got)
		}
		saved := execute(t, engine, ".snapshot fruit").(db.SnapshotResult)

		execute(t, engine, ".open "+second)
		execute(t, engine, ".snapshot fruit")

		history := execute(t, engine, ".history fruit").(db.QueryResult)
		if len(history.Data) != 2 {
			t.Fatalf("Expected 2 history entries, got %d", len(history.Data))
		}
		if history.Data[1][0] != saved.Transaction.Id {
			t.Errorf("Expected oldest entry %s, got %s", saved.Transaction.Id, history.Data[1][0])
		}

		execute(t, engine, ".open snapshot://fruit")
		if got := output(execute(t, engine, ".tables")); got != "pears\n" {
			t.Errorf("Expected 'pears' at HEAD, got %q", got)
		}

		execute(t, engine, ".open snapshot://fruit@"+saved.Transaction.Id)
		if got := output(execute(t, engine, ".tables")); got != "apples oranges\n" {
			t.Errorf("Expected 'apples oranges' at first save, got %q", got)
		}
	})
}

func TestIntegrationSharedCache(t *testing.T) {
	instance := Open(nil)
	path := createDatabase(t, "shared.db", 0, "CREATE TABLE t (x)")

	for _, name := range []string{"alice", "bob"} {
		engine := instance.Engine(core.Identity{Name: name})
		execute(t, engine, ".open "+path)
	}

	stats := instance.Cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected sessions to share the cache, got %+v", stats)
	}

	engine := instance.Engine(testIdentity)
	if _, err := engine.Execute(".snapshot x"); !errors.Is(err, db.ErrNoSnapshotStore) {
		t.Errorf("Expected ErrNoSnapshotStore, got %v", err)
	}
}

func TestIntegrationPageSizes(t *testing.T) {
	for _, pageSize := range []int{512, 1024, 4096, 8192, 16384, 32768, 65536} {
		path := createDatabase(t, "sized.db", pageSize,
			"CREATE TABLE b (x)",
			"CREATE TABLE a (x)",
			"CREATE VIEW v AS SELECT x FROM a",
		)

		engine := Open(nil).Engine(testIdentity)
		execute(t, engine, ".open "+path)

		info := engine.Database().Info()
		if int(info.PageSize) != pageSize {
			t.Errorf("Expected page size %d, got %d", pageSize, info.PageSize)
		}
		if info.CellCount != 3 {
			t.Errorf("Page size %d: expected 3 schema cells, got %d", pageSize, info.CellCount)
		}
		if tables := engine.Database().TableNames(); !reflect.DeepEqual(tables, []string{"a", "b"}) {
			t.Errorf("Page size %d: expected [a b], got %v", pageSize, tables)
		}
	}
}

func TestIntegrationCompressedExport(t *testing.T) {
	engine := Open(nil).Engine(testIdentity)
	path := createDatabase(t, "plain.db", 0, "CREATE TABLE logs (line text)")
	packed := filepath.Join(t.TempDir(), "packed.db.xz")

	execute(t, engine, ".open "+path)
	execute(t, engine, ".export "+packed)

	if _, err := os.Stat(packed); err != nil {
		t.Fatalf("Expected export: %v", err)
	}

	database, err := engine.Open(context.Background(), "file://"+packed)
	if err != nil {
		t.Fatalf("Failed to open export: %v", err)
	}
	if tables := database.TableNames(); !reflect.DeepEqual(tables, []string{"logs"}) {
		t.Errorf("Expected [logs], got %v", tables)
	}
}

// TestIntegrationPlanRoundTrip renders every plan and parses it again.
func TestIntegrationPlanRoundTrip(t *testing.T) {
	engine := Open(nil).Engine(testIdentity)

	queries := []string{
		"SELECT * FROM apples",
		"SELECT COUNT(*) FROM apples",
		"SELECT name, color FROM apples WHERE color = 'Yellow'",
		"SELECT apples.name, oranges.name FROM apples INNER JOIN oranges ON apples.id = oranges.id",
		"SELECT SUM(price), AVG(price) FROM orders RIGHT JOIN users ON orders.user_id = users.id ORDER BY users.name ASC, price DESC LIMIT 10",
		"SELECT x FROM t WHERE x >= 1.5",
	}

	for _, query := range queries {
		plan := execute(t, engine, query).(db.PlanResult)

		reparsed, err := sql.ParseSelect(plan.Statement.String())
		if err != nil {
			t.Errorf("%s: rendered SQL does not parse: %v", query, err)
			continue
		}
		if !reflect.DeepEqual(reparsed, plan.Statement) {
			t.Errorf("%s: round trip changed the tree:\n%#v\n%#v", query, plan.Statement, reparsed)
		}
	}
}
