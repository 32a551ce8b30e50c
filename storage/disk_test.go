package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskStoreWriteReadRoundTrip(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "ns/Node/out.json", []byte(`{"a":1}`)))

	ok, err := s.Exists(ctx, "ns/Node/out.json")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.Read(ctx, "ns/Node/out.json")
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(got))
}

func TestDiskStoreReadMissingReturnsErrNotFound(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	_, err := s.Read(context.Background(), "missing.json")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDiskStoreExistsFalseForMissing(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	ok, err := s.Exists(context.Background(), "missing.json")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDiskStoreRejectsPathEscape(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	ctx := context.Background()

	_, err := s.Read(ctx, "../escape.json")
	require.Error(t, err)

	err = s.Write(ctx, "../../escape.json", []byte("x"))
	require.Error(t, err)

	err = s.Write(ctx, "/abs/path.json", []byte("x"))
	require.Error(t, err)
}

func TestDiskStoreRejectsEmptyPath(t *testing.T) {
	s := NewDiskStore(t.TempDir())
	require.Error(t, s.Write(context.Background(), "", []byte("x")))
}
