package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xmh1011/raft-storage/config"
	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage"
)

type benchOptions struct {
	entries      uint64
	batch        uint64
	compactEvery uint64
	valueSize    int
}

func newBenchCmd() *cobra.Command {
	var bo benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Append, apply and compact synthetic entries in a scratch directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if bo.batch == 0 {
				return fmt.Errorf("batch must be positive")
			}

			// 不碰真实数据目录
			dir, err := os.MkdirTemp("", "raftstore-bench-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(dir)
			cfg.Storage.DataDir = dir

			return runBench(cmd.Context(), cfg, bo)
		},
	}
	cmd.Flags().Uint64Var(&bo.entries, "entries", 10000, "Number of entries to write")
	cmd.Flags().Uint64Var(&bo.batch, "batch", 100, "Entries per append/apply batch")
	cmd.Flags().Uint64Var(&bo.compactEvery, "compact-every", 2000, "Compact after this many applied entries, 0 disables")
	cmd.Flags().IntVar(&bo.valueSize, "value-size", 64, "Size of each value in bytes")
	return cmd
}

func runBench(ctx context.Context, cfg config.Config, bo benchOptions) error {
	store, err := storage.NewStorage(cfg, fsm.NewKV(), slog.Default(), nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.GetInitialState(ctx); err != nil {
		return err
	}

	value := strings.Repeat("x", bo.valueSize)
	var appendDur, applyDur, compactDur time.Duration
	compactions := 0
	sinceCompact := uint64(0)

	began := time.Now()
	for next := uint64(1); next <= bo.entries; next += bo.batch {
		end := min(next+bo.batch-1, bo.entries)
		batch := make([]param.Entry, 0, end-next+1)
		for i := next; i <= end; i++ {
			batch = append(batch, param.Entry{
				LogID:   param.NewLogID(1, i),
				Payload: param.EntryPayload{Type: param.EntryNormal, Data: fsm.NewSetCommand(fmt.Sprintf("key-%d", i%1024), value)},
			})
		}

		t := time.Now()
		if err := store.AppendToLog(ctx, batch); err != nil {
			return err
		}
		appendDur += time.Since(t)

		t = time.Now()
		if _, err := store.ApplyToStateMachine(ctx, batch); err != nil {
			return err
		}
		applyDur += time.Since(t)

		sinceCompact += uint64(len(batch))
		if bo.compactEvery > 0 && sinceCompact >= bo.compactEvery {
			t = time.Now()
			if _, err := store.DoLogCompaction(ctx); err != nil {
				return err
			}
			compactDur += time.Since(t)
			compactions++
			sinceCompact = 0
		}
	}
	total := time.Since(began)

	fmt.Printf("storage:      %s\n", cfg.Storage.Type)
	fmt.Printf("entries:      %d (batch %d)\n", bo.entries, bo.batch)
	fmt.Printf("total:        %s (%.0f entries/s)\n", total, float64(bo.entries)/total.Seconds())
	fmt.Printf("append:       %s\n", appendDur)
	fmt.Printf("apply:        %s\n", applyDur)
	fmt.Printf("compaction:   %s (%d runs)\n", compactDur, compactions)
	return nil
}
