package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New 创建结构化日志器：生产环境输出 JSON，其余环境输出文本。
func New(level, env string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, env)
}

// NewWithWriter 与 New 相同，但写入指定的 io.Writer。
func NewWithWriter(w io.Writer, level, env string) *slog.Logger {
	lvl, err := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.EqualFold(env, "production") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler).With(slog.String("service", "photodrop"))
	if err != nil {
		logger.Warn("日志级别无效，使用 info", slog.String("level", level))
	}
	return logger
}

// ParseLevel 把字符串转换为 slog.Level，无法识别时返回 info 和错误。
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q, want debug, info, warn or error", level)
	}
}
