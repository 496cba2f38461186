package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/raft-storage/config"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node:\n  id: 0\nstorage:\n  type: inmemory\n"), 0644))

	t.Run("flag supplies a missing id", func(t *testing.T) {
		opts = flags{}
		root := newRootCmd()
		require.NoError(t, root.ParseFlags([]string{"--config", path, "--id", "5", "--log-level", "warn"}))

		cfg, err := loadConfig(root)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), cfg.Node.ID)
		assert.Equal(t, config.StorageInMemory, cfg.Storage.Type)
		assert.Equal(t, "warn", cfg.Logger.Level)
	})

	t.Run("still invalid without the flag", func(t *testing.T) {
		opts = flags{}
		root := newRootCmd()
		require.NoError(t, root.ParseFlags([]string{"--config", path}))

		_, err := loadConfig(root)
		assert.Error(t, err)
	})
}
