package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "node.yaml")
		data := []byte(`
node:
  id: 3
storage:
  type: inmemory
  defensive: true
  log_retention: 500
logger:
  level: debug
  json: true
`)
		require.NoError(t, os.WriteFile(path, data, 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), cfg.Node.ID)
		assert.Equal(t, StorageInMemory, cfg.Storage.Type)
		assert.True(t, cfg.Storage.Defensive)
		assert.Equal(t, uint64(500), cfg.Storage.LogRetention)
		assert.Equal(t, "./raft-data", cfg.Storage.DataDir, "unset fields keep their default")
		assert.True(t, cfg.Logger.JSON)
		assert.Equal(t, "127.0.0.1:7070", cfg.Debug.ListenAddr)
	})

	t.Run("incomplete file loads and fails validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "partial.yaml")
		require.NoError(t, os.WriteFile(path, []byte("node:\n  id: 0\n"), 0644))
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Error(t, cfg.Validate())
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("node: [1, 2"), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cases := map[string]func(*Config){
		"zero node id":           func(c *Config) { c.Node.ID = 0 },
		"unknown storage type":   func(c *Config) { c.Storage.Type = "rocksdb" },
		"simplefile without dir": func(c *Config) { c.Storage.DataDir = "" },
		"unknown log level":      func(c *Config) { c.Logger.Level = "verbose" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("inmemory needs no data dir", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Type = StorageInMemory
		cfg.Storage.DataDir = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}
