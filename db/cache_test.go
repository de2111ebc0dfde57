package db

import (
	"os"
	"sync"
	"testing"
)

func readFruitDatabase(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(writeFruitDatabase(t))
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	return data
}

func TestCatalogCacheHit(t *testing.T) {
	cache := NewCatalogCache(2)
	data := readFruitDatabase(t)

	first, err := cache.Open("a.db", data)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	second, err := cache.Open("b.db", data)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	if first.Info().Source != "a.db" || second.Info().Source != "b.db" {
		t.Errorf("Expected sources a.db and b.db, got %s and %s", first.Info().Source, second.Info().Source)
	}
	if first.Digest() != second.Digest() {
		t.Error("Expected equal digests for equal images")
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("Expected 1 hit, 1 miss and 1 entry, got %+v", stats)
	}
}

func TestCatalogCacheEviction(t *testing.T) {
	cache := NewCatalogCache(1)
	data := readFruitDatabase(t)
	other := append([]byte(nil), data...)
	other[len(other)-1] ^= 0xff

	if _, err := cache.Open("a.db", data); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if _, err := cache.Open("b.db", other); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if _, err := cache.Open("a.db", data); err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	stats := cache.Stats()
	if stats.Hits != 0 || stats.Misses != 3 || stats.Entries != 1 {
		t.Errorf("Expected 0 hits, 3 misses and 1 entry, got %+v", stats)
	}
}

func TestCatalogCacheInvalidNotStored(t *testing.T) {
	cache := NewCatalogCache(DefaultCacheSize)

	if _, err := cache.Open("bad.db", []byte("short")); err == nil {
		t.Fatal("Expected error for a short image")
	}
	if stats := cache.Stats(); stats.Entries != 0 {
		t.Errorf("Expected no entries, got %d", stats.Entries)
	}
}

func TestCatalogCacheConcurrent(t *testing.T) {
	cache := NewCatalogCache(DefaultCacheSize)
	data := readFruitDatabase(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Open("fruit.db", data); err != nil {
				t.Errorf("Failed to open: %v", err)
			}
		}()
	}
	wg.Wait()

	stats := cache.Stats()
	if stats.Hits+stats.Misses != 8 || stats.Entries != 1 {
		t.Errorf("Expected 8 lookups and 1 entry, got %+v", stats)
	}
}
