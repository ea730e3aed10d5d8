package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"photodrop/internal/storage"

	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

// Config 聚合服务启动需要的关键配置。
type Config struct {
	HTTPPort           string
	Environment        string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	// 存储配置
	UploadDir         string
	MaxFileSize       int64
	AllowedExtensions []string
	TempMaxAge        time.Duration // 临时文件保留时长
	CleanupInterval   time.Duration // 后台清理间隔
	// 镜像配置
	MirrorDriver string // "none" 或 "s3"
	S3Endpoint   string // S3/MinIO 端点，不含协议
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3Region     string
	S3UseSSL     bool
}

// Load 从环境变量加载配置，并提供默认值。
// ENV_FILE 指定的 dotenv 文件（默认 .env，存在时）作为补充，环境变量优先。
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if err := readEnvFile(v); err != nil {
		return nil, err
	}

	maxFileSize, err := parseInt64Env(v, "MAX_FILE_SIZE", 10*1024*1024)
	if err != nil {
		return nil, err
	}

	tempMaxAge, err := parseDurationEnv(v, "TEMP_MAX_AGE", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cleanupInterval, err := parseDurationEnv(v, "CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	// 0 表示关闭限流
	rateLimitRequests, err := parseIntEnv(v, "RATE_LIMIT_REQUESTS", 60)
	if err != nil {
		return nil, err
	}

	rateLimitWindow, err := parseDurationEnv(v, "RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}

	corsOrigins := parseList(v.GetString("FRONTEND_URL"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:3000"}
	}

	extensions := parseList(strings.ToLower(v.GetString("ALLOWED_EXTENSIONS")))
	if len(extensions) == 0 {
		extensions = []string{"jpg", "jpeg", "png", "gif", "webp"}
	}

	mirrorDriver := strings.ToLower(envOrDefault(v, "MIRROR_DRIVER", "none"))
	switch mirrorDriver {
	case "none", "s3":
	default:
		return nil, fmt.Errorf("不支持的 MIRROR_DRIVER: %s", mirrorDriver)
	}

	return &Config{
		HTTPPort:           envOrDefault(v, "PORT", "3001"),
		Environment:        envOrDefault(v, "NODE_ENV", "development"),
		LogLevel:           envOrDefault(v, "LOG_LEVEL", "info"),
		CORSAllowedOrigins: corsOrigins,
		RateLimitRequests:  rateLimitRequests,
		RateLimitWindow:    rateLimitWindow,
		UploadDir:          envOrDefault(v, "UPLOAD_DIR", "./uploads"),
		MaxFileSize:        maxFileSize,
		AllowedExtensions:  extensions,
		TempMaxAge:         tempMaxAge,
		CleanupInterval:    cleanupInterval,
		MirrorDriver:       mirrorDriver,
		S3Endpoint:         envOrDefault(v, "S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:        envOrDefault(v, "S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        envOrDefault(v, "S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           envOrDefault(v, "S3_BUCKET", "photodrop"),
		S3Region:           envOrDefault(v, "S3_REGION", "us-east-1"),
		S3UseSSL:           parseBoolEnv(v, "S3_USE_SSL", false),
	}, nil
}

// StorageConfig 生成传给存储层的不可变配置。
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Root:              c.UploadDir,
		MaxFileSize:       c.MaxFileSize,
		AllowedExtensions: append([]string(nil), c.AllowedExtensions...),
	}
}

// IsProduction 判断是否运行在生产环境。
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// readEnvFile 读取 dotenv 文件。显式指定但不存在时报错，默认文件缺失时忽略。
func readEnvFile(v *viper.Viper) error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	return nil
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}

	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func parseIntEnv(v *viper.Viper, key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s 不能为负数: %d", key, value)
	}
	return value, nil
}

func parseInt64Env(v *viper.Viper, key string, defaultValue int64) (int64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s 必须为正数: %d", key, value)
	}
	return value, nil
}

func parseDurationEnv(v *viper.Viper, key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("解析 %s 失败: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s 必须为正时长: %s", key, raw)
	}
	return value, nil
}

func parseBoolEnv(v *viper.Viper, key string, defaultValue bool) bool {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return defaultValue
	}
	lower := strings.ToLower(raw)
	return lower == "true" || lower == "1" || lower == "yes"
}

func envOrDefault(v *viper.Viper, key, defaultValue string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}
