package repository

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testLogger struct{}

func (l *testLogger) Info(msg string, fields ...interface{})             {}
func (l *testLogger) Error(msg string, err error, fields ...interface{}) {}
func (l *testLogger) Warn(msg string, fields ...interface{})             {}
func (l *testLogger) Debug(msg string, fields ...interface{})            {}

func TestLocalOutputStore_Roundtrip(t *testing.T) {
	store, err := NewLocalOutputStore(t.TempDir(), &testLogger{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	path, err := store.Store(context.Background(), "merged.pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	r, size, err := store.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
	if size != int64(len("pdf bytes")) {
		t.Fatalf("expected size %d, got %d", len("pdf bytes"), size)
	}
}

func TestLocalOutputStore_OverwriteLastWriteWins(t *testing.T) {
	store, err := NewLocalOutputStore(t.TempDir(), &testLogger{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	if _, err := store.Store(context.Background(), "out.docx", strings.NewReader("first")); err != nil {
		t.Fatalf("first store failed: %v", err)
	}
	path, err := store.Store(context.Background(), "out.docx", strings.NewReader("second"))
	if err != nil {
		t.Fatalf("second store failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("expected last write to win, got %q", data)
	}
}

func TestLocalOutputStore_NameStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalOutputStore(dir, &testLogger{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	path, err := store.Store(context.Background(), "../escape.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("stored file escaped the output directory: %s", path)
	}
}

func TestLocalOutputStore_OpenMissing(t *testing.T) {
	store, err := NewLocalOutputStore(t.TempDir(), &testLogger{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	if _, _, err := store.Open(filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Fatalf("expected error opening missing file")
	}
}

func TestLocalOutputStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "outputs")
	if _, err := NewLocalOutputStore(dir, &testLogger{}); err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("output directory not created: %v", err)
	}
}
