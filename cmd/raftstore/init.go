package main

import (
	"log/slog"
	"os"

	"github.com/xmh1011/raft-storage/config"
)

func initLogger(cfg *config.Config) error {
	level, err := config.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return err
	}

	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true, Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)
	return nil
}
