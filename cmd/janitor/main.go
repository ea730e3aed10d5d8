package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"photodrop/internal/config"
	"photodrop/internal/logging"
	"photodrop/internal/storage/local"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("加载配置失败", slog.String("error", err.Error()))
		os.Exit(1)
	}

	maxAge := flag.Duration("max-age", cfg.TempMaxAge, "remove temp files at least this old")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	store, err := local.New(cfg.StorageConfig(), logger)
	if err != nil {
		logger.Error("初始化存储失败", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := store.CleanupTempFiles(ctx, *maxAge)
	fmt.Printf("scanned=%d removed=%d failed=%d duration=%s\n",
		result.Scanned, result.Removed, result.Failed, result.Duration)

	if result.Err != nil {
		os.Exit(1)
	}
}
