package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/xmh1011/raft-storage/config"
	"github.com/xmh1011/raft-storage/debughttp"
	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/metrics"
	"github.com/xmh1011/raft-storage/storage"
)

func newServeCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the storage and serve its debug endpoint until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Debug.ListenAddr = listenAddr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Debug HTTP listen address (overrides config)")
	return cmd
}

// Server 把存储和调试接口组合在一起。
type Server struct {
	store storage.DebugStorage
	debug *debughttp.Server
}

func NewServer(cfg config.Config) (*Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewPrometheus(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	logger := slog.Default().With("node_id", cfg.Node.ID)
	store, err := storage.NewStorage(cfg, fsm.NewKV(), logger, m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &Server{
		store: store,
		debug: debughttp.NewServer(cfg.Debug.ListenAddr, store, reg, logger),
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	st, err := s.store.GetInitialState(ctx)
	if err != nil {
		return fmt.Errorf("failed to read initial state: %w", err)
	}
	slog.Info("storage recovered",
		"term", st.HardState.CurrentTerm,
		"last_log_id", st.LastLogID.String(),
		"last_applied", st.LastApplied.String(),
		"membership_log_id", st.LastMembership.LogID.String())

	return s.debug.Start()
}

func (s *Server) Stop() {
	slog.Info("shutting down")
	if err := s.debug.Stop(); err != nil {
		slog.Error("failed to stop debug server", "error", err)
	}
	if err := s.store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("node stopped")
}

func runServe(ctx context.Context, cfg config.Config) error {
	srv, err := NewServer(cfg)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		srv.Stop()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	srv.Stop()
	return nil
}
