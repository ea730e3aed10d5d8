package storage

import (
	"context"
	"io"
	"time"
)

// TempDirName 是上传根目录下临时文件区的目录名，由 janitor 定期清理。
const TempDirName = "temp"

// Config 是存储核心的不可变配置，构造各组件时显式传入。
type Config struct {
	// Root 上传根目录，永久文件位于 <Root>/<YYYY>/<MM>，临时文件位于 <Root>/temp。
	Root string
	// MaxFileSize 单个文件允许的最大字节数。
	MaxFileSize int64
	// AllowedExtensions 小写、不含点的扩展名白名单。
	AllowedExtensions []string
}

// UploadCandidate 描述一次入库调用的输入，只在调用期间存在。
type UploadCandidate struct {
	OriginalName string
	Size         int64
	ContentType  string
	// TempPath 上传内容所在的临时文件路径。
	TempPath string
}

// StoredFileRecord 是已落盘文件的元数据，构造后不再修改。
type StoredFileRecord struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	Extension    string    `json:"extension"`
	AbsolutePath string    `json:"-"`
	RelativePath string    `json:"relativePath"`
	UploadDate   time.Time `json:"uploadDate"`
}

// Writer 定义对象存储写接口，支持流式写入。
type Writer interface {
	Write(ctx context.Context, key string, r io.Reader) (Location, error)
}

// Deleter 定义对象删除接口。
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Mirror 是本地文件的远端副本，组合了写入和删除能力。
type Mirror interface {
	Writer
	Deleter
}

// Location 描述已经写入对象的可访问信息。
type Location struct {
	Path string
	URL  string
}
