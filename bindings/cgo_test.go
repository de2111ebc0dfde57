//go:build cgo

package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nickyhof/PagerDB/internal/fixture"
	"github.com/nickyhof/PagerDB/ps"
)

func createTestDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.db")
	err := fixture.Create(path, fixture.Options{PageSize: 4096},
		"CREATE TABLE apples (id integer primary key, name text)",
		"CREATE TABLE oranges (id integer primary key, name text)",
	)
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	return path
}

func newTestHandle(t *testing.T) (int, *Handle) {
	t.Helper()
	persistence, err := ps.NewMemoryPersistence()
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}
	id := handles.add(persistence)
	t.Cleanup(func() { handles.remove(id) })

	h, ok := handles.get(id)
	if !ok {
		t.Fatalf("Handle %d not found", id)
	}
	return id, h
}

func TestHandleTable(t *testing.T) {
	first, _ := newTestHandle(t)
	second, _ := newTestHandle(t)
	if first == second {
		t.Errorf("Expected distinct handles, got %d twice", first)
	}

	handles.remove(first)
	if _, ok := handles.get(first); ok {
		t.Error("Expected removed handle to be gone")
	}
}

func TestHandleOpenAndExecute(t *testing.T) {
	_, h := newTestHandle(t)

	if resp := h.open(context.Background(), createTestDatabase(t)); !resp.Success || resp.Type != "info" {
		t.Fatalf("Expected info response, got %+v", resp)
	}
	if resp := h.execute(".tables"); !resp.Success || resp.Type != "tables" {
		t.Errorf("Expected tables response, got %+v", resp)
	}
	if resp := h.execute(".bogus"); resp.Success {
		t.Error("Expected an error response for an unknown command")
	}
}

func TestHandleConcurrentUse(t *testing.T) {
	_, h := newTestHandle(t)
	first := createTestDatabase(t)
	second := createTestDatabase(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			source := first
			if i%2 == 1 {
				source = second
			}
			for range 10 {
				if resp := h.open(context.Background(), source); !resp.Success {
					t.Errorf("Open failed: %s", resp.Error)
					return
				}
				if resp := h.execute(".tables"); !resp.Success {
					t.Errorf("Execute failed: %s", resp.Error)
					return
				}
			}
		}()
	}
	wg.Wait()
}
