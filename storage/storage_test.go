package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/raft-storage/config"
	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/metrics"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage/inmemory"
	"github.com/xmh1011/raft-storage/storage/simplefile"
)

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("InMemory", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Type = config.StorageInMemory

		s, err := NewStorage(cfg, fsm.NewKV(), nil, metrics.Noop{})
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &inmemory.Storage{}, s)

		st, err := s.GetInitialState(ctx)
		require.NoError(t, err)
		assert.Equal(t, param.NewInitialState(1), st)
	})

	t.Run("SimpleFile", func(t *testing.T) {
		cfg := config.Default()
		cfg.Node.ID = 3
		cfg.Storage.DataDir = t.TempDir()
		kv := fsm.NewKV()

		s, err := NewStorage(cfg, kv, nil, nil)
		require.NoError(t, err)
		defer s.Close()
		require.IsType(t, &simplefile.Storage{}, s)

		dir := filepath.Join(cfg.Storage.DataDir, "node-3")
		assert.Equal(t, dir, s.(*simplefile.Storage).Dir())
		_, err = os.Stat(dir)
		assert.NoError(t, err)
		assert.Same(t, kv, s.GetStateMachine(ctx))
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.Storage.Type = "rocksdb"

		_, err := NewStorage(cfg, fsm.NewKV(), nil, nil)
		assert.ErrorContains(t, err, "unknown storage type")
	})
}
