package local

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"photodrop/internal/storage"
)

// Metadata 读取已落盘文件的元数据，上传时间取当前时间。
func (s *Store) Metadata(storedPath, originalName string) (*storage.StoredFileRecord, error) {
	return s.MetadataAt(storedPath, originalName, s.now())
}

// MetadataAt 读取已落盘文件的元数据并使用给定的上传时间。
// 大小以磁盘为准；扩展名和 MIME 取自 originalName；文件不存在时返回匹配 storage.ErrNotFound 的错误。
func (s *Store) MetadataAt(storedPath, originalName string, uploadedAt time.Time) (*storage.StoredFileRecord, error) {
	abs, err := filepath.Abs(storedPath)
	if err != nil {
		return nil, &storage.IOError{Op: "resolve", Src: storedPath, Err: err}
	}

	rel, err := s.relative(abs)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		s.logger.Error("读取文件元数据失败", slog.String("path", abs), slog.String("error", err.Error()))
		return nil, &storage.IOError{Op: "stat", Src: abs, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &storage.IOError{Op: "stat", Src: abs, Err: fmt.Errorf("not a regular file")}
	}

	ext := extension(originalName)
	return &storage.StoredFileRecord{
		Filename:     filepath.Base(abs),
		OriginalName: originalName,
		Size:         info.Size(),
		MimeType:     storage.MimeType(ext),
		Extension:    ext,
		AbsolutePath: abs,
		RelativePath: filepath.ToSlash(rel),
		UploadDate:   uploadedAt,
	}, nil
}
