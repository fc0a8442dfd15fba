package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// StorageConfig selects where uploads are staged while they are being extracted.
type StorageConfig struct {
	Backend string `validate:"oneof=disk minio"`
	Dir     string `validate:"required_if=Backend disk"`
}

// MinIOConfig holds object storage settings for the minio staging backend.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port             string        `validate:"required,numeric"`
	ServiceName      string        `validate:"required"`
	LogLevel         string        `validate:"oneof=debug info warn error"`
	LogTimezone      string        `validate:"required"`
	Threshold        float64       `validate:"gt=0,lte=1"`
	MaxDocumentBytes int64         `validate:"gt=0"`
	MaxScoredRunes   int           `validate:"gt=0"`
	ScoreTimeout     time.Duration `validate:"gt=0"`
	Storage          StorageConfig
	MinIO            MinIOConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:             getEnv("PORT", "3000"),
		ServiceName:      getEnv("OTEL_SERVICE_NAME", "plagcheck"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogTimezone:      getEnv("LOG_TIMEZONE", "UTC"),
		Threshold:        getEnvFloat("PLAGIARISM_THRESHOLD", 0.7),
		MaxDocumentBytes: getEnvInt64("MAX_DOCUMENT_BYTES", 10<<20),
		MaxScoredRunes:   int(getEnvInt64("MAX_SCORED_RUNES", 200_000)),
		ScoreTimeout:     getEnvDuration("SCORE_TIMEOUT", 30*time.Second),
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "disk"),
			Dir:     getEnv("STORAGE_DIR", filepath.Join(os.TempDir(), "plagcheck")),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

// Validate checks value ranges and enumerations. MinIO settings are checked by the
// storage constructor since they only matter for that backend.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
}

// Location returns the time zone used for log timestamps, UTC if it cannot be loaded.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.LogTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
