package testsupport

import (
	"testing"

	"clipforge/internal/artifact"
	"clipforge/internal/config"
	"clipforge/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenArtifacts opens the artifact store backing the test config.
func MustOpenArtifacts(t testing.TB, cfg *config.Config) *artifact.Store {
	t.Helper()

	store, err := artifact.NewStore(cfg.Paths.ArtifactsDir, artifact.WithCompression(cfg.Storage.Compress))
	if err != nil {
		t.Fatalf("artifact.NewStore: %v", err)
	}
	return store
}
