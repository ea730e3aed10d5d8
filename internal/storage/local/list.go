package local

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"photodrop/internal/storage"
)

// ListOptions 控制目录列举。
type ListOptions struct {
	Recursive bool
	// Extensions 非空时只返回这些扩展名（不含点，大小写不敏感）的文件。
	Extensions []string
}

// ListFiles 列出 dir 下的普通文件路径，顺序不保证。
// 根目录不存在返回匹配 storage.ErrNotFound 的错误；符号链接不会被跟随。
func ListFiles(dir string, opts ListOptions) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &storage.IOError{Op: "list", Src: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &storage.IOError{Op: "list", Src: dir, Err: fmt.Errorf("not a directory")}
	}

	filter := extensionSet(opts.Extensions)
	var files []string

	if !opts.Recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, &storage.IOError{Op: "list", Src: dir, Err: err}
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && matchExtension(filter, entry.Name()) {
				files = append(files, filepath.Join(dir, entry.Name()))
			}
		}
		return files, nil
	}

	// WalkDir 不跟随根目录本身的符号链接，先解析再把结果映射回 dir 之下
	walkRoot, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, &storage.IOError{Op: "list", Src: dir, Err: err}
	}

	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() || !matchExtension(filter, d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.Join(dir, rel))
		return nil
	})
	if err != nil {
		return nil, &storage.IOError{Op: "list", Src: dir, Err: err}
	}
	return files, nil
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	return set
}

func matchExtension(filter map[string]struct{}, name string) bool {
	if filter == nil {
		return true
	}
	_, ok := filter[extension(name)]
	return ok
}
