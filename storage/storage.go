// Package storage persists and retrieves node output bytes (spec §4.3's
// output_directory contract, C1). Two backends are provided: DiskStore,
// adapted from the teacher's local artifact cache, and S3Store, adapted
// from the teacher's minio-go/v7-backed object store.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when relPath has no stored content.
var ErrNotFound = errors.New("storage: not found")

// Store writes and reads node output by a path relative to the engine root
// (the engine uses "<namespace path>/<output_directory>/<output_name><extension>"). Implementations must
// reject paths that escape the store's root.
type Store interface {
	Write(ctx context.Context, relPath string, content []byte) error
	Read(ctx context.Context, relPath string) ([]byte, error)
	Exists(ctx context.Context, relPath string) (bool, error)
}
