package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Addr     string // listen address
	DBURL    string // postgres DSN; empty runs the in-memory store
	LogLevel string

	WSWriteTimeout time.Duration
	WSReadTimeout  time.Duration
}

// Load reads .env if present, then the environment. Every field has a dev
// default so a bare `go run ./cmd/server` works.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:           getEnv("APP_ADDR", ":8080"),
		DBURL:          getEnv("DB_URL", ""),
		LogLevel:       getEnv("APP_LOG_LEVEL", "info"),
		WSWriteTimeout: getDuration("WS_WRITE_TIMEOUT", 3*time.Second),
		WSReadTimeout:  getDuration("WS_READ_TIMEOUT", 60*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
