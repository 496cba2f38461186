package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xmh1011/raft-storage/debughttp"
	"github.com/xmh1011/raft-storage/fsm"
	"github.com/xmh1011/raft-storage/param"
	"github.com/xmh1011/raft-storage/storage"
)

func newInspectCmd() *cobra.Command {
	var (
		start, stop uint64
		key         string
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the durable state of a stopped node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			kv := fsm.NewKV()
			store, err := storage.NewStorage(cfg, kv, nil, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := map[string]any{}
			if out["state"], err = debughttp.CollectState(ctx, store); err != nil {
				return err
			}
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("stop") {
				r := param.From(start)
				if cmd.Flags().Changed("stop") {
					r = param.Range(start, stop)
				}
				if out["log"], err = store.TryGetLogEntries(ctx, r); err != nil {
					return err
				}
			}
			if key != "" {
				v, err := kv.Get(key)
				if err != nil {
					return fmt.Errorf("key %q: %w", key, err)
				}
				out["kv"] = debughttp.KVView{Key: key, Value: v}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().Uint64Var(&start, "start", 0, "First log index to print")
	cmd.Flags().Uint64Var(&stop, "stop", 0, "Log index to stop before (exclusive)")
	cmd.Flags().StringVar(&key, "key", "", "Look up a key in the state machine")
	return cmd
}
