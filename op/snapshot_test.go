package op

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/internal/fixture"
	"github.com/nickyhof/PagerDB/ps"
)

func TestSnapshotRoundTrip(t *testing.T) {
	persistence, err := ps.NewMemoryPersistence()
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}
	snapshots := NewSnapshotOp(persistence)
	identity := core.Identity{Name: "test", Email: "test@test.com"}

	database, err := OpenDatabase("fruit.db", fruitDatabase(t))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	first, err := snapshots.Save("fruit", database, identity)
	if err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	loaded, err := snapshots.Load("fruit")
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if loaded.Source != "snapshot://fruit" {
		t.Errorf("Expected source snapshot://fruit, got %s", loaded.Source)
	}
	if loaded.Digest() != database.Digest() {
		t.Errorf("Expected digest %s, got %s", database.Digest(), loaded.Digest())
	}
	if !reflect.DeepEqual(loaded.TableNames(), database.TableNames()) {
		t.Errorf("Expected %v, got %v", database.TableNames(), loaded.TableNames())
	}

	grown, err := fixture.Bytes(t.TempDir(), fixture.Options{}, "CREATE TABLE pears (id integer)")
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	pears, err := OpenDatabase("pears.db", grown)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if _, err := snapshots.Save("fruit", pears, identity); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	history, err := snapshots.History("fruit")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 2 || history[1].Id != first.Id {
		t.Fatalf("Unexpected history %v", history)
	}

	older, err := snapshots.LoadAt("fruit", history[1])
	if err != nil {
		t.Fatalf("Failed to load older snapshot: %v", err)
	}
	if !reflect.DeepEqual(older.TableNames(), []string{"apples", "oranges"}) {
		t.Errorf("Expected older tables, got %v", older.TableNames())
	}

	current, err := snapshots.Load("fruit")
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if !reflect.DeepEqual(current.TableNames(), []string{"pears"}) {
		t.Errorf("Expected [pears], got %v", current.TableNames())
	}

	names, err := snapshots.List()
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"fruit"}) {
		t.Errorf("Expected [fruit], got %v", names)
	}

	if _, err := snapshots.Delete("fruit", identity); err != nil {
		t.Fatalf("Failed to delete snapshot: %v", err)
	}
	if _, err := snapshots.Load("fruit"); !errors.Is(err, ps.ErrSnapshotNotFound) {
		t.Errorf("Expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestLoadInvalidSnapshotImage(t *testing.T) {
	persistence, err := ps.NewMemoryPersistence()
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}
	identity := core.Identity{Name: "test", Email: "test@test.com"}

	if _, err := persistence.SaveSnapshot("junk", []byte("not a database"), identity); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	if _, err := NewSnapshotOp(persistence).Load("junk"); err == nil {
		t.Error("Expected invalid image to fail")
	}
}
