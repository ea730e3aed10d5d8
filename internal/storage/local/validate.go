package local

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"photodrop/internal/storage"
)

// ValidateExtension 检查文件扩展名是否在白名单内，大小写不敏感，无扩展名视为不合法。
func (s *Store) ValidateExtension(filename string) bool {
	ext := extension(filename)
	if ext == "" {
		return false
	}
	_, ok := s.allowed[ext]
	return ok
}

// ValidateSize 检查大小是否不超过上限。0 字节文件允许通过。
func (s *Store) ValidateSize(size int64) bool {
	return size >= 0 && size <= s.maxSize
}

// Validate 在任何 I/O 之前校验上传候选，失败时返回 *storage.ValidationError。
func (s *Store) Validate(c storage.UploadCandidate) error {
	if !s.ValidateExtension(c.OriginalName) {
		return &storage.ValidationError{
			Field:  "extension",
			Value:  extension(c.OriginalName),
			Reason: "file type is not allowed",
		}
	}
	if !s.ValidateSize(c.Size) {
		reason := fmt.Sprintf("exceeds limit of %d bytes", s.maxSize)
		if c.Size < 0 {
			reason = "must not be negative"
		}
		return &storage.ValidationError{
			Field:  "size",
			Value:  strconv.FormatInt(c.Size, 10),
			Reason: reason,
		}
	}
	return nil
}

// extension 返回小写、不含前导点的扩展名。
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
