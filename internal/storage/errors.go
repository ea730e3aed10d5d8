package storage

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrNotFound 表示目标路径不存在。
	ErrNotFound = errors.New("storage: file not found")
	// ErrOutsideRoot 表示路径解析到了上传根目录之外。
	ErrOutsideRoot = errors.New("storage: path escapes upload root")
	// ErrNotRegularFile 表示目标是目录、符号链接等非普通文件。
	ErrNotRegularFile = errors.New("storage: not a regular file")
)

// ValidationError 表示上传候选未通过扩展名或大小校验，不会自动重试。
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IOError 携带源路径和目标路径，便于定位文件系统故障。
type IOError struct {
	Op  string
	Src string
	Dst string
	Err error
}

func (e *IOError) Error() string {
	switch {
	case e.Src != "" && e.Dst != "":
		return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
	case e.Dst != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Dst, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Src, e.Err)
	}
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is 让 fs.ErrNotExist 类错误同时匹配 ErrNotFound。
func (e *IOError) Is(target error) bool {
	return target == ErrNotFound && errors.Is(e.Err, fs.ErrNotExist)
}

// IsValidation 判断错误链中是否包含 ValidationError。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
