// janitor.go: 临时区的后台清理。
//
// 按固定间隔调用 local.Store.CleanupTempFiles，启动后立即执行一次。
// 单个文件失败只计数，整体失败只记录日志，永远不会让后台任务退出。
package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"photodrop/internal/storage/local"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultCleanupInterval 是后台清理的默认间隔。
const DefaultCleanupInterval = time.Hour

var (
	janitorRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photodrop_janitor_runs_total",
		Help: "Total number of temp-area sweeps",
	})

	janitorFilesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photodrop_janitor_files_removed_total",
		Help: "Total number of stale temp files removed",
	})

	janitorAnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photodrop_janitor_anomalies_total",
		Help: "Total number of per-file sweep failures",
	})

	janitorDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "photodrop_janitor_duration_seconds",
		Help:    "Duration of temp-area sweeps in seconds",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})
)

// Janitor 定期清理临时区中的过期文件。
type Janitor struct {
	store    *local.Store
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // 保证同一时刻只有一次清理
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor 创建 janitor。interval <= 0 时使用 DefaultCleanupInterval。
func NewJanitor(store *local.Store, maxAge, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Janitor{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With(slog.String("component", "janitor")),
	}
}

// Start 启动后台 goroutine。重复调用无效。
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.run(runCtx, j.done)

	j.logger.Info("janitor 已启动",
		slog.Duration("interval", j.interval),
		slog.Duration("max_age", j.maxAge),
	)
}

// Stop 停止后台 goroutine 并等待正在进行的清理结束。
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	j.logger.Info("janitor 已停止")
}

func (j *Janitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	j.RunOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一次清理，可与后台任务并存，调用之间互斥。
func (j *Janitor) RunOnce(ctx context.Context) local.SweepResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	result := j.store.CleanupTempFiles(ctx, j.maxAge)

	janitorRunsTotal.Inc()
	janitorFilesRemovedTotal.Add(float64(result.Removed))
	janitorAnomaliesTotal.Add(float64(result.Failed))
	janitorDurationSeconds.Observe(result.Duration.Seconds())

	return result
}
