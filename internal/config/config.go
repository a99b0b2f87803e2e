// Package config loads inventar settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings.
type Config struct {
	DBPath    string
	Addr      string
	AdminUser string

	LogPath       string
	LogLevel      string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	TokenTTL        time.Duration
	ShutdownTimeout time.Duration

	MaxUploadBytes int64
	ImageMaxDim    int
	ImageQuality   int
}

// Load reads the given env files (".env" when none are named), then the
// INVENTAR_* environment variables. Missing files are ignored and variables
// already set in the environment take precedence over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		DBPath:    getEnv("INVENTAR_DB", "inventar.sqlite3"),
		Addr:      getEnv("INVENTAR_ADDR", ":8080"),
		AdminUser: getEnv("INVENTAR_ADMIN_USER", "Admin"),

		LogPath:       getEnv("INVENTAR_LOG_FILE", ""),
		LogLevel:      getEnv("INVENTAR_LOG_LEVEL", "info"),
		LogMaxSizeMB:  getEnvInt("INVENTAR_LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("INVENTAR_LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: getEnvInt("INVENTAR_LOG_MAX_AGE", 28),

		TokenTTL:        getEnvDuration("INVENTAR_TOKEN_TTL", 24*time.Hour),
		ShutdownTimeout: getEnvDuration("INVENTAR_SHUTDOWN_TIMEOUT", 5*time.Second),

		MaxUploadBytes: int64(getEnvInt("INVENTAR_MAX_UPLOAD_BYTES", 5<<20)),
		ImageMaxDim:    getEnvInt("INVENTAR_IMAGE_MAX_DIM", 1024),
		ImageQuality:   getEnvInt("INVENTAR_IMAGE_QUALITY", 80),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("INVENTAR_DB is required")
	}
	if c.Addr == "" {
		return fmt.Errorf("INVENTAR_ADDR is required")
	}
	if c.AdminUser == "" {
		return fmt.Errorf("INVENTAR_ADMIN_USER is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("INVENTAR_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("INVENTAR_SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("INVENTAR_MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.ImageMaxDim <= 0 {
		return fmt.Errorf("INVENTAR_IMAGE_MAX_DIM must be positive, got %d", c.ImageMaxDim)
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		return fmt.Errorf("INVENTAR_IMAGE_QUALITY must be between 1 and 100, got %d", c.ImageQuality)
	}
	if c.LogMaxSizeMB <= 0 {
		return fmt.Errorf("INVENTAR_LOG_MAX_SIZE must be positive, got %d", c.LogMaxSizeMB)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
