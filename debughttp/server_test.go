package debughttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/metrics"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage"
	"github.com/xmh1011/raft-storage/storage/inmemory"
)

type rawResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, rawResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp rawResponse
	if strings.HasPrefix(rr.Header().Get("Content-Type"), contentTypeJSON) {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	}
	return rr, resp
}

// newPopulatedStore 返回一个已写入 1..10、应用到 8、并在 5 处做过快照的存储。
func newPopulatedStore(t *testing.T, m metrics.Metrics) *inmemory.Storage {
	t.Helper()
	ctx := context.Background()
	s := inmemory.New(fsm.NewKV(), inmemory.Options{NodeID: 1, LogRetention: 10, Metrics: m})
	t.Cleanup(func() { _ = s.Close() })

	var entries []param.Entry
	for i := uint64(1); i <= 10; i++ {
		entries = append(entries, param.Entry{
			LogID:   param.NewLogID(1, i),
			Payload: param.EntryPayload{Type: param.EntryNormal, Data: fsm.NewSetCommand(fmt.Sprintf("k%d", i), "v")},
		})
	}
	require.NoError(t, s.AppendToLog(ctx, entries))
	_, err := s.ApplyToStateMachine(ctx, entries[:5])
	require.NoError(t, err)
	_, err = s.DoLogCompaction(ctx)
	require.NoError(t, err)
	_, err = s.ApplyToStateMachine(ctx, entries[5:8])
	require.NoError(t, err)
	return s
}

func TestHandlers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)
	h := NewServer("", newPopulatedStore(t, m), reg, nil).Handler()

	t.Run("Health", func(t *testing.T) {
		rr, resp := do(t, h, "/health")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", resp.Status)
	})

	t.Run("State", func(t *testing.T) {
		rr, resp := do(t, h, "/state")
		require.Equal(t, http.StatusOK, rr.Code)

		var view StateView
		require.NoError(t, json.Unmarshal(resp.Data, &view))
		assert.Equal(t, param.NewLogID(1, 8), view.LastApplied)
		assert.Equal(t, param.NewLogID(1, 10), view.LastLogID)
		require.NotNil(t, view.SnapshotMeta)
		assert.Equal(t, param.NewLogID(1, 5), view.SnapshotMeta.LastLogID)
		assert.Equal(t, 8, view.StateMachineKV)
	})

	t.Run("Applied", func(t *testing.T) {
		_, resp := do(t, h, "/applied")
		var view AppliedView
		require.NoError(t, json.Unmarshal(resp.Data, &view))
		assert.Equal(t, param.NewLogID(1, 8), view.LastApplied)
	})

	t.Run("Log", func(t *testing.T) {
		rr, resp := do(t, h, "/log?start=3&stop=6")
		require.Equal(t, http.StatusOK, rr.Code)
		var entries []param.Entry
		require.NoError(t, json.Unmarshal(resp.Data, &entries))
		require.Len(t, entries, 3)
		assert.Equal(t, uint64(3), entries[0].LogID.Index)

		rr, _ = do(t, h, "/log?start=abc")
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr, _ = do(t, h, "/log?start=6&stop=3")
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		// 靠近 MaxUint64 的起点不会让一页的终点回绕
		rr, resp = do(t, h, "/log?start=18446744073709551610")
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(resp.Data, &entries))
		assert.Empty(t, entries)
	})

	t.Run("LogEntry", func(t *testing.T) {
		rr, _ := do(t, h, "/log/4")
		assert.Equal(t, http.StatusOK, rr.Code)

		rr, _ = do(t, h, "/log/40")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Snapshot", func(t *testing.T) {
		rr, resp := do(t, h, "/snapshot")
		require.Equal(t, http.StatusOK, rr.Code)
		var meta param.SnapshotMeta
		require.NoError(t, json.Unmarshal(resp.Data, &meta))
		assert.Equal(t, param.NewLogID(1, 5), meta.LastLogID)
		assert.NotEmpty(t, meta.SnapshotID)
	})

	t.Run("KV", func(t *testing.T) {
		rr, resp := do(t, h, "/kv/k3")
		require.Equal(t, http.StatusOK, rr.Code)
		var kv KVView
		require.NoError(t, json.Unmarshal(resp.Data, &kv))
		assert.Equal(t, "v", kv.Value)

		rr, _ = do(t, h, "/kv/missing")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Metrics", func(t *testing.T) {
		rr, _ := do(t, h, "/metrics")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "raftstore_state_machine_last_applied_index")
	})
}

func TestErrorMapping(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage.NewMockDebugStorage(ctrl)
	h := NewServer("", store, nil, nil).Handler()

	t.Run("Closed", func(t *testing.T) {
		store.EXPECT().GetMembership(gomock.Any()).Return(nil, param.ErrStorageClosed)
		rr, resp := do(t, h, "/membership")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "error", resp.Status)
	})

	t.Run("Internal", func(t *testing.T) {
		store.EXPECT().LastAppliedState(gomock.Any()).
			Return(param.LogID{}, nil, param.NewFatal("last_applied_state", "", errors.New("io error")))
		rr, _ := do(t, h, "/applied")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("No snapshot", func(t *testing.T) {
		store.EXPECT().GetCurrentSnapshot(gomock.Any()).Return(nil, nil)
		rr, _ := do(t, h, "/snapshot")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Unsupported state machine", func(t *testing.T) {
		store.EXPECT().GetStateMachine(gomock.Any()).Return(fsm.NewMockStateMachine(ctrl))
		rr, _ := do(t, h, "/kv/a")
		assert.Equal(t, http.StatusNotImplemented, rr.Code)
	})

	t.Run("No metrics without gatherer", func(t *testing.T) {
		rr, _ := do(t, h, "/metrics")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
