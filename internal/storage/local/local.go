package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photodrop/internal/storage"
)

// Store 管理上传根目录下的本地文件。
// 不持有任何全局锁，并发安全依赖于目标路径的唯一性。
type Store struct {
	root    string
	tempDir string
	maxSize int64
	allowed map[string]struct{}
	logger  *slog.Logger
	now     func() time.Time
}

// New 根据配置创建 Store，并确保根目录和临时区存在。
func New(cfg storage.Config, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("upload root is empty")
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}

	tempDir := filepath.Join(root, storage.TempDirName)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure temp dir: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return &Store{
		root:    root,
		tempDir: tempDir,
		maxSize: cfg.MaxFileSize,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "storage")),
		now:     time.Now,
	}, nil
}

// Root 返回上传根目录的绝对路径。
func (s *Store) Root() string {
	return s.root
}

// TempDir 返回临时区目录。
func (s *Store) TempDir() string {
	return s.tempDir
}

// Stage 将上传流写入临时区，返回临时文件路径和实际写入的字节数。
// 写入失败时临时文件会被删除；进程中途退出留下的文件由 janitor 回收。
func (s *Store) Stage(ctx context.Context, r io.Reader) (string, int64, error) {
	if s == nil {
		return "", 0, fmt.Errorf("local store uninitialized")
	}

	file, err := os.CreateTemp(s.tempDir, "upload-*")
	if err != nil {
		return "", 0, &storage.IOError{Op: "stage", Dst: s.tempDir, Err: err}
	}
	tempPath := file.Name()

	written, err := io.Copy(file, contextReader{ctx: ctx, r: r})
	if err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", 0, &storage.IOError{Op: "stage", Dst: tempPath, Err: err}
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", 0, &storage.IOError{Op: "stage", Dst: tempPath, Err: err}
	}

	return tempPath, written, nil
}

// Resolve 把相对于根目录的路径解析为绝对路径，拒绝越界的路径。
func (s *Store) Resolve(relativePath string) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(relativePath))
	if _, err := s.relative(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// relative 计算 abs 相对根目录的路径，必须严格位于根目录之下。
func (s *Store) relative(abs string) (string, error) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", storage.ErrOutsideRoot, abs)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", storage.ErrOutsideRoot, abs)
	}
	return rel, nil
}

// contextReader 在每次读取前检查 ctx，使流式拷贝可以被取消。
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
