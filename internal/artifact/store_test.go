package artifact

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
)

func TestPutOpenRoundtrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "compressed"
		}
		t.Run(name, func(t *testing.T) {
			store, err := NewStore(t.TempDir(), WithCompression(compress))
			require.NoError(t, err)

			payload := []byte("raw video payload")
			dgst, size, err := store.PutBytes(payload)
			require.NoError(t, err)
			require.Equal(t, digest.FromBytes(payload), dgst)
			require.Equal(t, int64(len(payload)), size)

			rc, err := store.Open(dgst)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, rc.Close())
			require.NoError(t, err)
			require.Equal(t, payload, got)

			require.NoError(t, store.Verify(dgst))
		})
	}
}

func TestPutIsIdempotent(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte("same bytes twice")
	first, _, err := store.PutBytes(payload)
	require.NoError(t, err)
	second, _, err := store.PutBytes(payload)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open(digest.FromBytes([]byte("never stored")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyDetectsTampering(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	dgst, _, err := store.PutBytes([]byte("original payload"))
	require.NoError(t, err)

	// Corrupt the stored bytes behind the store's back.
	require.NoError(t, os.WriteFile(store.Path(dgst), []byte("tampered payload"), 0o644))

	err = store.Verify(dgst)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestVerifyMissingArtifact(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	err = store.Verify(digest.FromBytes([]byte("gone")))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMaterialize(t *testing.T) {
	store, err := NewStore(t.TempDir(), WithCompression(true))
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("frame"), 1024)
	dgst, _, err := store.PutBytes(payload)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "staging", "source.mp4")
	require.NoError(t, store.Materialize(dgst, target))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestNewStoreRequiresDir(t *testing.T) {
	_, err := NewStore("")
	if err == nil {
		t.Fatal("expected error for empty dir")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("unexpected error class")
	}
}
