package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"photodrop/internal/storage"
	"photodrop/internal/storage/local"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ingestTotal 按结果统计入库次数：stored / rejected / failed
	ingestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodrop_ingest_total",
			Help: "Total number of photo ingestions by result",
		},
		[]string{"result"},
	)

	// ingestBytesTotal 记录成功落盘的字节数
	ingestBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photodrop_ingest_bytes_total",
		Help: "Total number of bytes persisted by successful ingestions",
	})

	// mirrorFailuresTotal 记录镜像失败次数
	mirrorFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photodrop_mirror_failures_total",
			Help: "Total number of failed mirror operations",
		},
		[]string{"op"},
	)
)

// PhotoService 串起入库流程：校验 -> 命名 -> 分区 -> 迁移 -> 元数据 -> 镜像。
type PhotoService struct {
	store  *local.Store
	mirror storage.Mirror
	logger *slog.Logger
	now    func() time.Time
}

// NewPhotoService 创建服务。mirror 可以为 nil，表示不做远端镜像。
func NewPhotoService(store *local.Store, mirror storage.Mirror, logger *slog.Logger) *PhotoService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PhotoService{
		store:  store,
		mirror: mirror,
		logger: logger.With(slog.String("component", "photos")),
		now:    time.Now,
	}
}

// Validate 在不触碰磁盘的情况下校验上传候选。
func (s *PhotoService) Validate(c storage.UploadCandidate) error {
	if s == nil || s.store == nil {
		return errors.New("photo service not initialized")
	}
	return s.store.Validate(c)
}

// Stage 把上传流暂存到临时区。
func (s *PhotoService) Stage(ctx context.Context, r io.Reader) (string, int64, error) {
	if s == nil || s.store == nil {
		return "", 0, errors.New("photo service not initialized")
	}
	return s.store.Stage(ctx, r)
}

// Discard 丢弃未能入库的临时文件。
func (s *PhotoService) Discard(tempPath string) {
	if s == nil || s.store == nil || tempPath == "" {
		return
	}
	if err := s.store.DeleteFile(tempPath); err != nil {
		s.logger.Warn("丢弃临时文件失败", slog.String("path", tempPath), slog.String("error", err.Error()))
	}
}

// Ingest 把临时文件持久化到按年月分区的目录并返回元数据记录。
// 校验失败时不做任何 I/O；迁移失败时临时文件保持原样，由调用方决定是否丢弃。
func (s *PhotoService) Ingest(ctx context.Context, c storage.UploadCandidate) (*storage.StoredFileRecord, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("photo service not initialized")
	}

	if err := s.store.Validate(c); err != nil {
		ingestTotal.WithLabelValues("rejected").Inc()
		s.logger.Info("上传被拒绝", slog.String("original_name", c.OriginalName), slog.String("reason", err.Error()))
		return nil, err
	}
	if c.TempPath == "" {
		ingestTotal.WithLabelValues("failed").Inc()
		return nil, errors.New("upload candidate has no temp path")
	}

	uploadedAt := s.now().UTC()
	dst := filepath.Join(s.store.TargetDir(uploadedAt), local.UniqueNameAt(c.OriginalName, uploadedAt))

	if err := s.store.MoveFile(ctx, c.TempPath, dst); err != nil {
		ingestTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("move upload: %w", err)
	}

	record, err := s.store.MetadataAt(dst, c.OriginalName, uploadedAt)
	if err != nil {
		ingestTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	ingestTotal.WithLabelValues("stored").Inc()
	ingestBytesTotal.Add(float64(record.Size))
	s.logger.Info("照片已入库",
		slog.String("original_name", record.OriginalName),
		slog.String("relative_path", record.RelativePath),
		slog.Int64("size", record.Size),
	)

	s.mirrorRecord(ctx, record)
	return record, nil
}

// Delete 显式删除一个永久文件及其镜像，文件不存在不视为错误。
func (s *PhotoService) Delete(ctx context.Context, relativePath string) error {
	if s == nil || s.store == nil {
		return errors.New("photo service not initialized")
	}

	abs, err := s.store.Resolve(relativePath)
	if err != nil {
		return err
	}
	if rel, err := filepath.Rel(s.store.TempDir(), abs); err == nil && filepath.IsLocal(rel) {
		return fmt.Errorf("%w: temp area is managed by the janitor", storage.ErrOutsideRoot)
	}

	// 只删除普通文件，分区目录和符号链接不经由此入口删除
	info, err := os.Lstat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return &storage.IOError{Op: "stat", Src: abs, Err: err}
	case !info.Mode().IsRegular():
		return fmt.Errorf("%w: %s", storage.ErrNotRegularFile, relativePath)
	}

	if err := s.store.DeleteFile(abs); err != nil {
		return err
	}

	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, filepath.ToSlash(relativePath)); err != nil {
			mirrorFailuresTotal.WithLabelValues("delete").Inc()
			s.logger.Warn("删除镜像失败", slog.String("relative_path", relativePath), slog.String("error", err.Error()))
		}
	}
	return nil
}

// mirrorRecord 把文件推送到镜像。本地磁盘是权威副本，镜像失败只记录不返回。
func (s *PhotoService) mirrorRecord(ctx context.Context, record *storage.StoredFileRecord) {
	if s.mirror == nil {
		return
	}

	file, err := os.Open(record.AbsolutePath)
	if err != nil {
		mirrorFailuresTotal.WithLabelValues("write").Inc()
		s.logger.Warn("打开待镜像文件失败", slog.String("path", record.AbsolutePath), slog.String("error", err.Error()))
		return
	}
	defer file.Close()

	loc, err := s.mirror.Write(ctx, record.RelativePath, file)
	if err != nil {
		mirrorFailuresTotal.WithLabelValues("write").Inc()
		s.logger.Warn("镜像写入失败", slog.String("relative_path", record.RelativePath), slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("镜像写入完成", slog.String("location", loc.URL))
}
