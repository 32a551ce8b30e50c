// Package hashcache memoizes file content hashes within a single run so that
// a file advertised as an input to more than one node is not re-read from
// disk twice. Adapted from the generic lru.Cache[K, V] usage pattern in the
// teacher's project artifact store.
package hashcache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

const chunkSize = 8 * 1024

type key struct {
	path    string
	size    int64
	modUnix int64
}

// Cache hashes file contents with SHA-256, caching by (path, size, mtime) so
// an unchanged file is hashed at most once per Cache instance.
type Cache struct {
	entries *lru.Cache[key, string]
}

// New creates a Cache holding up to capacity distinct file hashes.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	entries, _ := lru.New[key, string](capacity)
	return &Cache{entries: entries}
}

// Hash returns the hex SHA-256 digest of path's contents, or "" if path does
// not exist. A missing path hashes to "", which is never "current" (spec
// §4.7).
func (c *Cache) Hash(path string) (string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	k := key{path: path, size: info.Size(), modUnix: info.ModTime().UnixNano()}
	if c != nil && c.entries != nil {
		if h, ok := c.entries.Get(k); ok {
			return h, nil
		}
	}

	h, err := HashFile(path)
	if err != nil {
		return "", err
	}
	if c != nil && c.entries != nil {
		c.entries.Add(k, h)
	}
	return h, nil
}

// HashFile computes the hex SHA-256 digest of path's contents directly,
// bypassing the cache. Reads in 8 KiB chunks per spec §4.7.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	// Wrapping f hides its WriteTo method, so CopyBuffer reads through buf
	// instead of os.File's own 32 KiB copy path.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
