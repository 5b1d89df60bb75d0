package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver      string
	DBDSN         string
	ServerPort    string
	SessionSecret string

	LogLevel string
	Env      string

	BlobDriver      string
	BlobDir         string
	BlobS3Bucket    string
	BlobS3Region    string
	BlobS3Endpoint  string
	BlobS3PathStyle bool

	AdminUsername string
	AdminPassword string

	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBDriver:        getEnv("DB_DRIVER", "postgres"),
		DBDSN:           os.Getenv("DB_DSN"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Env:             getEnv("APP_ENV", "production"),
		BlobDriver:      getEnv("BLOB_DRIVER", "fs"),
		BlobDir:         getEnv("BLOB_DIR", "./uploads"),
		BlobS3Bucket:    os.Getenv("BLOB_S3_BUCKET"),
		BlobS3Region:    getEnv("BLOB_S3_REGION", "us-east-1"),
		BlobS3Endpoint:  os.Getenv("BLOB_S3_ENDPOINT"),
		BlobS3PathStyle: strings.EqualFold(os.Getenv("BLOB_S3_PATH_STYLE"), "true"),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "Admin123!"),
		ShutdownTimeout: 15 * time.Second,
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.New("SHUTDOWN_TIMEOUT is not a valid duration")
		}
		cfg.ShutdownTimeout = d
	}

	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is not set")
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, errors.New("DB_DRIVER must be postgres or sqlite")
	}
	switch cfg.BlobDriver {
	case "fs":
	case "s3":
		if cfg.BlobS3Bucket == "" {
			return nil, errors.New("BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		return nil, errors.New("BLOB_DRIVER must be fs or s3")
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
