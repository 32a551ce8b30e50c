package hashcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashMemoizesUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(4)
	h1, err := c.Hash(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 == "" {
		t.Fatal("expected a non-empty hash for an existing file")
	}

	h2, err := c.Hash(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected memoized hash to be stable, got %s then %s", h1, h2)
	}
}

func TestHashMissingFileIsEmpty(t *testing.T) {
	c := New(4)
	h, err := c.Hash(filepath.Join(t.TempDir(), "missing.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if h != "" {
		t.Fatalf("expected empty hash for a missing file, got %q", h)
	}
}

func TestHashChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	os.WriteFile(path, []byte("one"), 0o644)
	h1, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}

	os.WriteFile(path, []byte("two"), 0o644)
	h2, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if h1 == h2 {
		t.Fatal("expected different content to hash differently")
	}
}
