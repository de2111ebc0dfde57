package ps

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nickyhof/PagerDB/core"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

func TestNewMemoryPersistence(t *testing.T) {
	persistence, err := NewMemoryPersistence()
	if err != nil {
		t.Fatalf("Failed to create memory persistence: %v", err)
	}

	if !persistence.IsInitialized() {
		t.Error("Expected persistence to be initialized")
	}

	if txn := persistence.LatestTransaction(); txn.Id != "" {
		t.Errorf("Expected no transactions, got %v", txn)
	}
}

func TestPersistenceNotInitialized(t *testing.T) {
	var persistence *Persistence

	if persistence.IsInitialized() {
		t.Error("Expected nil persistence to return false")
	}

	if _, err := persistence.ListSnapshots(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}

	if _, err := persistence.SaveSnapshot("a", []byte("x"), testIdentity); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}

	var zero Persistence
	if err := zero.ensureInitialized(); err != ErrNotInitialized {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestFilePersistenceReopen(t *testing.T) {
	dir := t.TempDir()

	persistence, err := NewFilePersistence(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	if _, err := persistence.SaveSnapshot("main", []byte("image-bytes"), testIdentity); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	// the worktree mirrors HEAD
	onDisk, err := os.ReadFile(filepath.Join(dir, "snapshots", "main.db"))
	if err != nil {
		t.Fatalf("Failed to read worktree file: %v", err)
	}
	if string(onDisk) != "image-bytes" {
		t.Errorf("Expected worktree content 'image-bytes', got %q", onDisk)
	}

	reopened, err := NewFilePersistence(dir, nil)
	if err != nil {
		t.Fatalf("Failed to reopen file persistence: %v", err)
	}

	data, err := reopened.LoadSnapshot("main")
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("Expected 'image-bytes', got %q", data)
	}
}

func TestFilePersistenceDeleteLast(t *testing.T) {
	dir := t.TempDir()

	persistence, err := NewFilePersistence(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}

	if _, err := persistence.SaveSnapshot("only", []byte("x"), testIdentity); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if _, err := persistence.DeleteSnapshot("only", testIdentity); err != nil {
		t.Fatalf("Failed to delete snapshot: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "snapshots")); !os.IsNotExist(err) {
		t.Errorf("Expected snapshots directory to be removed, got %v", err)
	}

	names, err := persistence.ListSnapshots()
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected no snapshots, got %v", names)
	}
}
