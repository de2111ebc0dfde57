package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestDetectScheme(t *testing.T) {
	tests := []struct {
		path     string
		expected urlScheme
	}{
		{"s3://bucket/key", schemeS3},
		{"S3://bucket/key", schemeS3},
		{"https://example.com/db", schemeHTTPS},
		{"http://example.com/db", schemeHTTP},
		{"file:///tmp/sample.db", schemeFile},
		{"snapshot://fruit@abc", schemeSnapshot},
		{"/tmp/sample.db", schemeLocal},
		{"sample.db", schemeLocal},
	}

	for _, tt := range tests {
		if got := detectScheme(tt.path); got != tt.expected {
			t.Errorf("detectScheme(%q) = %s, expected %s", tt.path, got, tt.expected)
		}
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://data/dbs/sample.db.xz")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if bucket != "data" || key != "dbs/sample.db.xz" {
		t.Errorf("Expected data and dbs/sample.db.xz, got %s and %s", bucket, key)
	}

	for _, url := range []string{"s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		if _, _, err := parseS3URL(url); err == nil {
			t.Errorf("Expected error for %q", url)
		}
	}
}

func TestLocalRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("page"), 4096)
	dir := t.TempDir()

	for _, name := range []string{"plain.db", "packed.db.xz"} {
		path := filepath.Join(dir, name)
		if err := writeDestination(context.Background(), path, data, nil, LocalAccess{}); err != nil {
			t.Fatalf("%s: failed to write: %v", name, err)
		}

		got, err := readSource(context.Background(), "file://"+path, nil, LocalAccess{})
		if err != nil {
			t.Fatalf("%s: failed to read: %v", name, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%s: round trip changed the data", name)
		}
	}

	info, err := os.Stat(filepath.Join(dir, "packed.db.xz"))
	if err != nil {
		t.Fatalf("Failed to stat: %v", err)
	}
	if info.Size() >= int64(len(data)) {
		t.Errorf("Expected compressed file smaller than %d, got %d", len(data), info.Size())
	}
}

func TestReadSourceBadXZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db.xz")
	if err := os.WriteFile(path, []byte("not xz"), 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if _, err := readSource(context.Background(), path, nil, LocalAccess{}); err == nil {
		t.Error("Expected error for a broken xz stream")
	}
}

func TestReadSourceHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sample.db" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("database bytes"))
	}))
	defer server.Close()

	data, err := readSource(context.Background(), server.URL+"/sample.db", nil, LocalAccess{})
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if string(data) != "database bytes" {
		t.Errorf("Expected 'database bytes', got %q", data)
	}

	if _, err := readSource(context.Background(), server.URL+"/missing.db", nil, LocalAccess{}); err == nil {
		t.Error("Expected error for 404")
	}
}

func TestReadSourceHTTPCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("database bytes"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := readSource(ctx, server.URL, nil, LocalAccess{}); err == nil {
		t.Error("Expected error for a cancelled context")
	}
}

func TestWriteDestinationHTTP(t *testing.T) {
	if err := writeDestination(context.Background(), "https://example.com/db", nil, nil, LocalAccess{}); err == nil {
		t.Error("Expected error writing to HTTP")
	}
}

// fakeS3 stores objects by request path.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	methods []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.methods = append(f.methods, r.Method+" "+r.URL.Path)
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[r.URL.Path] = body
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestS3PathStyle(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{"/data/sample.db": []byte("stored image")}}
	server := httptest.NewServer(fake)
	defer server.Close()

	cfg := &S3Config{
		AccessKey: "test",
		SecretKey: "test",
		Region:    "us-east-1",
		Endpoint:  server.URL,
	}

	data, err := readSource(context.Background(), "s3://data/sample.db", cfg, LocalAccess{})
	if err != nil {
		t.Fatalf("Failed to read from S3: %v", err)
	}
	if string(data) != "stored image" {
		t.Errorf("Expected 'stored image', got %q", data)
	}

	if err := writeDestination(context.Background(), "s3://data/copy.db", []byte("copy"), cfg, LocalAccess{}); err != nil {
		t.Fatalf("Failed to write to S3: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	expected := []string{"GET /data/sample.db", "PUT /data/copy.db"}
	if len(fake.methods) != len(expected) {
		t.Fatalf("Expected requests %v, got %v", expected, fake.methods)
	}
	for i := range expected {
		if fake.methods[i] != expected[i] {
			t.Errorf("Request %d: expected %s, got %s", i, expected[i], fake.methods[i])
		}
	}
}

// failingWriter fails every write and records how it was finished.
type failingWriter struct {
	aborted bool
	closed  bool
}

func (w *failingWriter) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("disk full")
}

func (w *failingWriter) Close() error {
	w.closed = true
	return nil
}

func (w *failingWriter) Abort() error {
	w.aborted = true
	return nil
}

func TestWriteDestinationAbortsFailedWrite(t *testing.T) {
	writer := &failingWriter{}
	original := osCreate
	osCreate = func(path string) (io.WriteCloser, error) { return writer, nil }
	defer func() { osCreate = original }()

	err := writeDestination(context.Background(), filepath.Join(t.TempDir(), "copy.db.xz"), []byte("image"), nil, LocalAccess{})
	if err == nil {
		t.Fatal("Expected write error")
	}
	if !writer.aborted {
		t.Error("Expected writer to be aborted")
	}
	if writer.closed {
		t.Error("Expected writer not to be closed")
	}
}

func TestLocalFileAbortRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.db")
	writer, err := osCreate(path)
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	if _, err := writer.Write([]byte("part")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	abortWriter(writer)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be removed, got %v", path, err)
	}
}

func TestS3WriterAbortDoesNotUpload(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	cfg := &S3Config{AccessKey: "test", SecretKey: "test", Region: "us-east-1", Endpoint: server.URL}
	writer, err := openS3Writer(context.Background(), "s3://data/partial.db", cfg)
	if err != nil {
		t.Fatalf("Failed to open S3 writer: %v", err)
	}
	writer.Write([]byte("partial"))

	abortWriter(writer)
	if err := writer.Close(); err != nil {
		t.Fatalf("Close after abort: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.methods) != 0 {
		t.Errorf("Expected no requests, got %v", fake.methods)
	}
}

func TestLocalAccessRootRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.db"), []byte("secret"), 0o644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if _, err := readSource(context.Background(), "link/secret.db", nil, LocalAccess{Root: root}); err == nil {
		t.Error("Expected read through symlink out of root to fail")
	}
}
