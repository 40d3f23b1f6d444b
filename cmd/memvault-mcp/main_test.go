package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memvault/memvault/internal/config"
)

type stubEmbedder struct{}

func (stubEmbedder) Dimension() int     { return 4 }
func (stubEmbedder) MaxInputChars() int { return 0 }
func (stubEmbedder) Model() string      { return "stub" }
func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, 4)
	}
	return out, nil
}

func TestOpenStoreDefaultsToLocalSQLiteBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "sqlite_vec"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "test.db")

	store, engine, err := openStore(context.Background(), cfg, stubEmbedder{})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Nil(t, engine)
	defer func() { _ = store.Close() }()
}
