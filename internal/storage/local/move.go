package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"photodrop/internal/storage"
)

// MoveFile 把 src 迁移到 dst：建目录 -> 流式拷贝到同目录临时文件 -> fsync -> rename -> 删除 src。
//
// 拷贝失败或 ctx 取消时，dst 下不会出现半截文件，src 保持不变。
// rename 成功后删除 src 失败只记录日志，不作为错误返回。
// 同一 dst 的并发调用不受支持，由调用方保证目标唯一。
func (s *Store) MoveFile(ctx context.Context, src, dst string) error {
	logger := s.logger.With(slog.String("src", src), slog.String("dst", dst))

	if err := ctx.Err(); err != nil {
		return &storage.IOError{Op: "move", Src: src, Dst: dst, Err: err}
	}

	if err := s.ensureDir(filepath.Dir(dst)); err != nil {
		logger.Error("创建目标目录失败", slog.String("error", err.Error()))
		return &storage.IOError{Op: "mkdir", Src: src, Dst: dst, Err: err}
	}

	if err := copyAtomic(ctx, src, dst); err != nil {
		logger.Error("文件迁移失败", slog.String("error", err.Error()))
		return &storage.IOError{Op: "copy", Src: src, Dst: dst, Err: err}
	}

	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("源文件清理失败", slog.String("error", err.Error()))
	}

	logger.Info("文件迁移完成")
	return nil
}

// ensureDir 直接尝试创建目录，已存在视为成功，不做先检查后创建。
func (s *Store) ensureDir(dir string) error {
	err := os.Mkdir(dir, 0o755)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		return nil
	case errors.Is(err, fs.ErrNotExist):
		// 上级目录缺失，MkdirAll 同样容忍并发创建
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	default:
		return err
	}

	s.logger.Info("目录已创建", slog.String("dir", dir))
	return nil
}

func copyAtomic(ctx context.Context, src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source is not a regular file")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.partial")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if _, err = io.Copy(tmp, contextReader{ctx: ctx, r: in}); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}
