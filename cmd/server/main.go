package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photodrop/internal/api"
	"photodrop/internal/config"
	"photodrop/internal/logging"
	"photodrop/internal/service"
	"photodrop/internal/storage"
	"photodrop/internal/storage/local"
	"photodrop/internal/storage/s3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("加载配置失败", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)
	slog.SetDefault(logger)
	logger.Info("配置加载完成，开始启动服务", slog.String("environment", cfg.Environment))

	store, err := local.New(cfg.StorageConfig(), logger)
	if err != nil {
		logger.Error("初始化存储失败", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror, err := newMirror(ctx, cfg)
	if err != nil {
		logger.Error("初始化镜像失败", slog.String("error", err.Error()))
		os.Exit(1)
	}

	photos := service.NewPhotoService(store, mirror, logger)
	janitor := service.NewJanitor(store, cfg.TempMaxAge, cfg.CleanupInterval, logger)
	janitor.Start(ctx)
	defer janitor.Stop()

	uploadHandler := api.NewUploadHandler(photos, cfg.MaxFileSize, logger)
	router := api.NewRouter(cfg, uploadHandler, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		Handler:           router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("服务监听端口", slog.String("addr", srv.Addr), slog.String("upload_dir", store.Root()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("监听失败", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
		logger.Info("收到退出信号，开始优雅关闭")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("优雅关闭失败", slog.String("error", err.Error()))
	}

	logger.Info("服务已停止")
}

// newMirror 按 MIRROR_DRIVER 创建远端镜像，未启用时返回 nil。
func newMirror(ctx context.Context, cfg *config.Config) (storage.Mirror, error) {
	if cfg.MirrorDriver != "s3" {
		return nil, nil
	}

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	mirror, err := s3.New(initCtx, s3.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return mirror, nil
}
