package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"

	StorageDisk = "disk"
	StorageS3   = "s3"
)

var ErrJWTSecretRequired = errors.New("JWT_SECRET is required")

type Config struct {
	Port         string
	Env          string
	DatabaseDSN  string
	StoreBackend string
	AutoMigrate  bool

	JWTSecret string
	JWTExpiry time.Duration

	AllowedOrigins []string

	UploadDir      string
	MaxUploadBytes int64
	PublicBaseURL  string

	StorageBackend string
	S3             S3Config

	LogLevel  string
	LogFormat string
}

// S3Config holds object storage settings used when STORAGE_BACKEND=s3.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	port := getEnv("PORT", "5000")

	cfg := Config{
		Port:           port,
		Env:            getEnv("ENV", "development"),
		DatabaseDSN:    DatabaseDSN(),
		StoreBackend:   getEnv("STORE_BACKEND", StoreMySQL),
		AutoMigrate:    getEnvAsBool("AUTO_MIGRATE", true),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      24 * time.Hour,
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_MB", 5)) << 20,
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		StorageBackend: getEnv("STORAGE_BACKEND", StorageDisk),
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL: strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DatabaseDSN returns DATABASE_DSN or the local development default. The
// migrate command uses it without loading the rest of the configuration.
func DatabaseDSN() string {
	return getEnv("DATABASE_DSN", "root:password@tcp(127.0.0.1:3306)/notes?parseTime=true")
}

// Validate ensures the configuration can start a server.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrJWTSecretRequired
	}

	switch c.StoreBackend {
	case StoreMySQL:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for store backend %q", c.StoreBackend)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.StorageBackend {
	case StorageDisk:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for storage backend %q", c.StorageBackend)
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for storage backend %q", c.StorageBackend)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
