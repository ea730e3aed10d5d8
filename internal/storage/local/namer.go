package local

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxBaseNameBytes = 100

// UniqueName 生成存储文件名：<base>-<毫秒时间戳>-<随机串><ext>。
//
// 唯一性是概率性的，来自 crypto/rand 生成的随机串，不依赖任何锁或计数器：
// 同一毫秒内对同一原始名的并发调用也会以压倒性概率得到不同结果。
func UniqueName(originalName string) string {
	return uniqueName(originalName, time.Now())
}

// UniqueNameAt 与 UniqueName 相同，但时间戳取自 t，使文件名与入库时间一致。
func UniqueNameAt(originalName string, t time.Time) string {
	return uniqueName(originalName, t)
}

func uniqueName(originalName string, now time.Time) string {
	name := lastElement(originalName)
	ext := filepath.Ext(name)
	base := sanitize(strings.TrimSuffix(name, ext))

	cleanExt := ""
	if e := sanitizeExt(ext); e != "" {
		cleanExt = "." + e
	}

	return fmt.Sprintf("%s-%d-%s%s", base, now.UnixMilli(), randomToken(), cleanExt)
}

// randomToken 取 UUIDv4 前 8 字节（60 位随机）编码为 base36。
func randomToken() string {
	id := uuid.New()
	return strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36)
}

// lastElement 去掉客户端可能带上的目录部分，兼容 Windows 分隔符。
func lastElement(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// sanitize 只保留字母、数字、'-'、'_'、'.'，空白替换为 '_'，并去掉首尾的点。
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	return truncate(strings.Trim(b.String(), "."), maxBaseNameBytes)
}

func sanitizeExt(ext string) string {
	var b strings.Builder
	for _, r := range strings.TrimPrefix(ext, ".") {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate 按字节截断，但不切断 UTF-8 字符。
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
