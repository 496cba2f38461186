package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xmh1011/raft-storage/config"
)

// flags 覆盖配置文件中的对应字段，只有显式设置的才生效。
type flags struct {
	configPath  string
	nodeID      uint64
	storageType string
	dataDir     string
	logLevel    string
}

var opts flags

func main() {
	rootCmd := newRootCmd()
	rootCmd.AddCommand(newServeCmd(), newInspectCmd(), newBenchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "raftstore",
		Short:        "Durable storage for a Raft node",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "raftstore.yaml", "Path to the YAML config file")
	pf.Uint64Var(&opts.nodeID, "id", 0, "Node ID (overrides config)")
	pf.StringVar(&opts.storageType, "storage", "", "Storage type: inmemory or simplefile (overrides config)")
	pf.StringVar(&opts.dataDir, "data", "", "Directory to store raft data (overrides config)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	return rootCmd
}

// loadConfig 读取配置文件并应用命令行覆盖，校验通过后初始化日志。
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}

	pf := cmd.Flags()
	if pf.Changed("id") {
		cfg.Node.ID = opts.nodeID
	}
	if pf.Changed("storage") {
		cfg.Storage.Type = opts.storageType
	}
	if pf.Changed("data") {
		cfg.Storage.DataDir = opts.dataDir
	}
	if pf.Changed("log-level") {
		cfg.Logger.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	if err := initLogger(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
