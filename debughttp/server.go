// Package debughttp serves a read-only view of a node's storage over HTTP.
package debughttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage"
)

const (
	contentTypeJSON        = "application/json"
	defaultShutdownTimeout = 5 * time.Second
	// maxLogPage 限制一次 /log 请求返回的条目数
	maxLogPage = 1000
)

// Server exposes a DebugStorage for inspection. It never mutates the storage.
type Server struct {
	store      storage.DebugStorage
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	addr       string
	httpServer *http.Server
}

// NewServer creates a server listening on addr. gatherer may be nil, in which
// case /metrics is not mounted.
func NewServer(addr string, store storage.DebugStorage, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    store,
		gatherer: gatherer,
		logger:   logger.With("component", "debughttp"),
		addr:     addr,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/applied", s.handleApplied)
	r.Get("/membership", s.handleMembership)
	r.Get("/log", s.handleLog)
	r.Get("/log/{index}", s.handleLogEntry)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/kv/{key}", s.handleKV)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start 在后台开始监听。
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("debug HTTP server error", "error", err)
		}
	}()

	s.logger.Info("debug HTTP server started", "addr", s.addr)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown debug HTTP server: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), NewErrorResponse(err.Error()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, param.ErrStorageClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, param.ErrLogNotFound), errors.Is(err, param.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, param.ErrInvalidRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse(nil))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	view, err := CollectState(r.Context(), s.store)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(view))
}

// CollectState 只通过读操作汇总存储状态，不会像 GetInitialState 那样写入 hard state。
func CollectState(ctx context.Context, store storage.DebugStorage) (StateView, error) {
	var view StateView
	var err error

	if view.HardState, err = store.ReadHardState(ctx); err != nil {
		return view, err
	}
	if view.FirstLogID, err = store.FirstIDInLog(ctx); err != nil {
		return view, err
	}
	if view.LastLogID, err = store.LastIDInLog(ctx); err != nil {
		return view, err
	}
	if view.LastApplied, _, err = store.LastAppliedState(ctx); err != nil {
		return view, err
	}
	if view.Membership, err = store.GetMembership(ctx); err != nil {
		return view, err
	}
	snap, err := store.GetCurrentSnapshot(ctx)
	if err != nil {
		return view, err
	}
	if snap != nil {
		view.SnapshotMeta = &snap.Meta
		_ = snap.Data.Close()
	}
	if kv, ok := store.GetStateMachine(ctx).(*fsm.KV); ok {
		view.StateMachineKV = kv.Len()
	}
	return view, nil
}

func (s *Server) handleApplied(w http.ResponseWriter, r *http.Request) {
	applied, membership, err := s.store.LastAppliedState(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(AppliedView{LastApplied: applied, LastMembership: membership}))
}

func (s *Server) handleMembership(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetMembership(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(m))
}

// pageEnd 返回从 start 开始一页的结束位置，在 MaxUint64 处饱和。
func pageEnd(start uint64) uint64 {
	if start > math.MaxUint64-maxLogPage {
		return math.MaxUint64
	}
	return start + maxLogPage
}

// handleLog 返回 [start, stop) 内实际存在的日志条目。stop 缺省时读到末尾，最多 maxLogPage 条。
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseIndex(q.Get("start"), 0)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid start: "+err.Error()))
		return
	}
	stop, err := parseIndex(q.Get("stop"), pageEnd(start))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid stop: "+err.Error()))
		return
	}
	if stop < start {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("stop must not be less than start"))
		return
	}
	stop = min(stop, pageEnd(start))

	entries, err := s.store.TryGetLogEntries(r.Context(), param.Range(start, stop))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []param.Entry{}
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(entries))
}

func (s *Server) handleLogEntry(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("invalid index"))
		return
	}
	e, err := s.store.TryGetLogEntry(r.Context(), index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if e == nil {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse(fmt.Sprintf("log entry %d not found", index)))
		return
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(e))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.GetCurrentSnapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if snap == nil {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse("no snapshot"))
		return
	}
	_ = snap.Data.Close()
	s.writeJSON(w, http.StatusOK, NewOKResponse(snap.Meta))
}

func (s *Server) handleKV(w http.ResponseWriter, r *http.Request) {
	kv, ok := s.store.GetStateMachine(r.Context()).(*fsm.KV)
	if !ok {
		s.writeJSON(w, http.StatusNotImplemented, NewErrorResponse("state machine does not support key lookup"))
		return
	}
	key := chi.URLParam(r, "key")
	value, err := kv.Get(key)
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(KVView{Key: key, Value: value}))
}

func parseIndex(raw string, def uint64) (uint64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}
