package local

import (
	"fmt"
	"path/filepath"
	"time"
)

// TargetDir 返回 <root>/<YYYY>/<MM>，使用 t 自身的日历字段。零值时间按当前时间处理。
func (s *Store) TargetDir(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return filepath.Join(s.root, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())))
}
