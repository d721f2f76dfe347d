// Package config reads the moderation server's settings from the
// environment, after loading an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	LogLevel       string
	HTTPPort       string
	GRPCPort       string
	BlockThreshold float64
	FlagThreshold  float64
	AuthCacheTTL   time.Duration
	ExtraWords     []string
	MaxBatch       int
	MaxWords       int
	MaxImageBytes  int64
	PostgresDSN    string
	AdminToken     string
}

// Load loads the env file named by MODERATION_ENV_FILE (default ".env") and
// then reads every setting. Values already present in the environment win
// over the file. A missing env file is not an error.
func Load() (*Config, error) {
	envFile := envOrDefault("MODERATION_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("Load: env file %s: %w", envFile, err)
	}
	return FromEnv(), nil
}

// FromEnv reads every setting from the environment. Malformed numbers fall
// back to their defaults.
func FromEnv() *Config {
	return &Config{
		LogLevel:       envOrDefault("MODERATION_LOG_LEVEL", "info"),
		HTTPPort:       envOrDefault("MODERATION_HTTP_PORT", "8001"),
		GRPCPort:       envOrDefault("MODERATION_GRPC_PORT", "50051"),
		BlockThreshold: envOrDefaultFloat("MODERATION_BLOCK_THRESHOLD", 0.8),
		FlagThreshold:  envOrDefaultFloat("MODERATION_FLAG_THRESHOLD", 0.0),
		AuthCacheTTL:   time.Duration(envOrDefaultInt("MODERATION_AUTH_CACHE_TTL_S", 30)) * time.Second,
		ExtraWords:     splitList(os.Getenv("MODERATION_EXTRA_WORDS")),
		MaxBatch:       envOrDefaultInt("MODERATION_MAX_BATCH", 1000),
		MaxWords:       envOrDefaultInt("MODERATION_MAX_WORDS", 100),
		MaxImageBytes:  int64(envOrDefaultInt("MODERATION_MAX_IMAGE_MB", 10)) * 1024 * 1024,
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		AdminToken:     os.Getenv("MODERATION_ADMIN_TOKEN"),
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
