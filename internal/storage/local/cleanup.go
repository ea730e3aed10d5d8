package local

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"photodrop/internal/storage"
)

// DefaultTempMaxAge 是临时文件的默认保留时长。
const DefaultTempMaxAge = 24 * time.Hour

// SweepResult 描述一次临时区清理的结果。
type SweepResult struct {
	Scanned int
	Removed int
	// Failed 单个文件检查或删除失败的次数，这类失败不会中断清理。
	Failed int
	// Err 整体失败（例如临时目录不可读），只记录不抛出。
	Err      error
	Duration time.Duration
}

// DeleteFile 删除文件。文件已不存在不视为错误，其他失败原样上抛。
func (s *Store) DeleteFile(path string) error {
	err := os.Remove(path)
	if err == nil {
		s.logger.Info("文件已删除", slog.String("path", path))
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	s.logger.Error("删除文件失败", slog.String("path", path), slog.String("error", err.Error()))
	return &storage.IOError{Op: "delete", Src: path, Err: err}
}

// CleanupTempFiles 删除临时区中修改时间至少在 maxAge 之前的文件。
// 适合在无人值守的定时任务中运行：任何失败都只记录日志，不会上抛。
func (s *Store) CleanupTempFiles(ctx context.Context, maxAge time.Duration) SweepResult {
	start := time.Now()
	var result SweepResult

	files, err := ListFiles(s.tempDir, ListOptions{})
	if err != nil {
		s.logger.Error("清理临时文件失败", slog.String("dir", s.tempDir), slog.String("error", err.Error()))
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	cutoff := s.now().Add(-maxAge)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			result.Err = err
			break
		}
		result.Scanned++

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// 上传流程已经把它迁走
				continue
			}
			result.Failed++
			s.logger.Warn("检查临时文件失败", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := s.DeleteFile(path); err != nil {
			result.Failed++
			s.logger.Warn("删除临时文件失败", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		result.Removed++
	}

	result.Duration = time.Since(start)
	s.logger.Info("临时文件清理完成",
		slog.Duration("max_age", maxAge),
		slog.Int("scanned", result.Scanned),
		slog.Int("removed", result.Removed),
		slog.Int("failed", result.Failed),
	)
	return result
}
