// Package config loads deployment settings from the environment, with an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config carries every deployment-time setting the service consumes.
type Config struct {
	Addr         string
	CertFile     string
	KeyFile      string
	DatabaseURL  string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	SnapshotPath string
	ImageDir     string
	OtelHost     string
	// Markup scales stored product prices on order lines. 1 means charge
	// the stored price as-is.
	Markup decimal.Decimal
}

// Load reads configuration from a .env file (when present) and the process
// environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be fully set already.
	_ = godotenv.Load()

	markup, err := decimal.NewFromString(getEnv("ORDER_MARKUP", "1"))
	if err != nil {
		return nil, fmt.Errorf("parse ORDER_MARKUP: %w", err)
	}
	if markup.Sign() <= 0 {
		return nil, fmt.Errorf("ORDER_MARKUP must be positive, got %s", markup)
	}

	return &Config{
		Addr:         getEnv("ADDR", ":8443"),
		CertFile:     getEnv("CERT_FILE", ""),
		KeyFile:      getEnv("KEY_FILE", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:      getEnvAsInt("REDIS_DB", 0),
		SnapshotPath: getEnv("SNAPSHOT_PATH", "productos.json"),
		ImageDir:     getEnv("IMAGE_DIR", "public/imagenes"),
		OtelHost:     getEnv("OTEL_HOST", "localhost:4317"),
		Markup:       markup,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
