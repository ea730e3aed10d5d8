package storage

import "strings"

// DefaultMimeType 用于未知扩展名。
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// MimeType 按扩展名查固定表，ext 可带或不带前导点，大小写不敏感。
func MimeType(ext string) string {
	key := strings.ToLower(strings.TrimPrefix(ext, "."))
	if v, ok := mimeTypes[key]; ok {
		return v
	}
	return DefaultMimeType
}
