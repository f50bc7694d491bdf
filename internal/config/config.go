package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB        DBConfig
	Storage   StorageConfig
	JWT       JWTConfig
	Server    ServerConfig
	Drive     DriveConfig
	RateLimit RateLimitConfig
	Thumbnail ThumbnailConfig
	Fetch     FetchConfig
	Redis     RedisConfig
	Metrics   MetricsConfig
}

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Path     string
}

type StorageConfig struct {
	Backend   string
	LocalPath string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret string
}

type ServerConfig struct {
	Port           string
	BodyLimitMB    int
	AllowedOrigins string
}

type DriveConfig struct {
	DefaultStorageLimit int64
	MaxFileSize         int64
	MaxFolderDepth      int
	MaxTags             int
}

// RateLimitConfig holds per operation class request budgets. A limit of zero
// disables limiting for that class.
type RateLimitConfig struct {
	Backend   string
	Window    time.Duration
	IdleTTL   time.Duration
	Limits    map[string]int
	KeyPrefix string
}

type ThumbnailConfig struct {
	Enabled bool
	Width   int
	Height  int
	Quality int
	Timeout time.Duration
}

type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MetricsConfig struct {
	Enabled bool
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "drive"),
			Password: getEnv("DB_PASSWORD", "drive_secret"),
			Name:     getEnv("DB_NAME", "drive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "drive.db"),
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "local"),
			LocalPath: getEnv("STORAGE_LOCAL_PATH", "./data/content"),
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "drive"),
			Region:    getEnv("MINIO_REGION", ""),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me-in-production"),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			BodyLimitMB:    getEnvAsInt("SERVER_BODY_LIMIT_MB", 100),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3001,http://127.0.0.1:3001"),
		},
		Drive: DriveConfig{
			DefaultStorageLimit: getEnvAsInt64("DRIVE_DEFAULT_STORAGE_LIMIT", 1<<30),
			MaxFileSize:         getEnvAsInt64("DRIVE_MAX_FILE_SIZE", 50<<20),
			MaxFolderDepth:      getEnvAsInt("DRIVE_MAX_FOLDER_DEPTH", 32),
			MaxTags:             getEnvAsInt("DRIVE_MAX_TAGS", 20),
		},
		RateLimit: RateLimitConfig{
			Backend:   getEnv("RATE_LIMIT_BACKEND", "memory"),
			Window:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			IdleTTL:   getEnvAsDuration("RATE_LIMIT_IDLE_TTL", 10*time.Minute),
			KeyPrefix: getEnv("RATE_LIMIT_KEY_PREFIX", "drive:ratelimit"),
			Limits: map[string]int{
				"fileUpload":   getEnvAsInt("RATE_LIMIT_FILE_UPLOAD", 30),
				"saveFromUrl":  getEnvAsInt("RATE_LIMIT_SAVE_FROM_URL", 10),
				"folderCreate": getEnvAsInt("RATE_LIMIT_FOLDER_CREATE", 60),
				"copy":         getEnvAsInt("RATE_LIMIT_COPY", 20),
				"delete":       getEnvAsInt("RATE_LIMIT_DELETE", 60),
				"restore":      getEnvAsInt("RATE_LIMIT_RESTORE", 60),
				"copyRequest":  getEnvAsInt("RATE_LIMIT_COPY_REQUEST", 10),
			},
		},
		Thumbnail: ThumbnailConfig{
			Enabled: getEnvAsBool("THUMBNAIL_ENABLED", true),
			Width:   getEnvAsInt("THUMBNAIL_WIDTH", 256),
			Height:  getEnvAsInt("THUMBNAIL_HEIGHT", 256),
			Quality: getEnvAsInt("THUMBNAIL_QUALITY", 80),
			Timeout: getEnvAsDuration("THUMBNAIL_TIMEOUT", 5*time.Second),
		},
		Fetch: FetchConfig{
			Timeout:  getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			MaxBytes: getEnvAsInt64("FETCH_MAX_BYTES", 50<<20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}
}

func (c ServerConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
