package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"photodrop/internal/storage"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config 包含 S3/MinIO 镜像所需的配置。
type Config struct {
	Endpoint  string // 不含协议，如 "localhost:9000" 或 "s3.amazonaws.com"
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Mirror 把本地已落盘的照片同步到 S3 兼容存储，实现 storage.Mirror。
// 对象 key 与本地相对路径一致（YYYY/MM/文件名）。
type Mirror struct {
	client *minio.Client
	bucket string
}

// New 创建镜像实例，bucket 不存在时自动创建。
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{
			Region: cfg.Region,
		}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Mirror{client: client, bucket: cfg.Bucket}, nil
}

// Write 以流式方式上传对象，Content-Type 按 key 的扩展名推断。
func (m *Mirror) Write(ctx context.Context, key string, r io.Reader) (storage.Location, error) {
	if m == nil || m.client == nil {
		return storage.Location{}, fmt.Errorf("s3 mirror uninitialized")
	}

	objectKey, err := ObjectKey(key)
	if err != nil {
		return storage.Location{}, err
	}

	opts := minio.PutObjectOptions{ContentType: storage.MimeType(path.Ext(objectKey))}
	size := objectSize(r)
	if size < 0 {
		opts.PartSize = unknownSizePartSize
	}

	info, err := m.client.PutObject(ctx, m.bucket, objectKey, r, size, opts)
	if err != nil {
		return storage.Location{}, fmt.Errorf("put object: %w", err)
	}

	return storage.Location{
		Path: objectKey,
		URL:  fmt.Sprintf("s3://%s/%s", m.bucket, info.Key),
	}, nil
}

// Delete 删除镜像对象，对象不存在时 S3 语义上同样成功。
func (m *Mirror) Delete(ctx context.Context, key string) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("s3 mirror uninitialized")
	}

	objectKey, err := ObjectKey(key)
	if err != nil {
		return err
	}

	if err := m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// unknownSizePartSize 限制未知长度上传时每个分片的缓冲区大小
const unknownSizePartSize uint64 = 16 << 20

// objectSize 从 *os.File 或带 Size 方法的 reader 取得剩余长度，取不到时返回 -1。
func objectSize(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Stat() (os.FileInfo, error) }:
		info, err := v.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return -1
		}
		if seeker, ok := r.(io.Seeker); ok {
			if offset, err := seeker.Seek(0, io.SeekCurrent); err == nil && offset <= info.Size() {
				return info.Size() - offset
			}
		}
		return -1
	case interface{ Len() int }:
		return int64(v.Len())
	default:
		return -1
	}
}

// ObjectKey 把本地相对路径规整为以 '/' 分隔的对象 key，拒绝越界或空 key。
func ObjectKey(key string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(key))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}
