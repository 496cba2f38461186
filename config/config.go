package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	StorageInMemory   = "inmemory"
	StorageSimpleFile = "simplefile"
)

// Config holds all configuration for a storage node.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Storage StorageConfig `yaml:"storage"`
	Logger  LoggerConfig  `yaml:"logger"`
	Debug   DebugConfig   `yaml:"debug"`
}

// NodeConfig describes the identity of the node.
type NodeConfig struct {
	ID uint64 `yaml:"id"`
}

// StorageConfig selects the backend and its durability policy.
type StorageConfig struct {
	Type      string `yaml:"type"`
	DataDir   string `yaml:"data_dir"`
	Defensive bool   `yaml:"defensive"`
	// LogRetention 快照完成后在边界之前保留的日志条数，供落后的 follower 追赶；0 表示全部清除。
	LogRetention uint64 `yaml:"log_retention"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DebugConfig covers the read-only introspection endpoint.
type DebugConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Node: NodeConfig{ID: 1},
		Storage: StorageConfig{
			Type:    StorageSimpleFile,
			DataDir: "./raft-data",
		},
		Logger: LoggerConfig{Level: "info"},
		Debug:  DebugConfig{ListenAddr: "127.0.0.1:7070"},
	}
}

// Load 从 YAML 文件加载配置。文件不存在时返回 Default()；文件中缺省的字段保留默认值。
// Load 不做校验，调用者在应用命令行覆盖之后调用 Validate。
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations no backend can run with.
func (c Config) Validate() error {
	if c.Node.ID == 0 {
		return errors.New("node.id must be positive")
	}
	switch c.Storage.Type {
	case StorageInMemory:
	case StorageSimpleFile:
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir is required for simplefile storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}
	if _, err := ParseLevel(c.Logger.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to its slog value. An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", name)
	}
}
