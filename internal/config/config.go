// Package config loads runtime settings from an optional .env file and the
// process environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every tunable of the server.
type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	MaxScores       int
	StaticDir       string
	ClientOrigin    string
	RateLimitRPS    int
	RateLimitBurst  int
	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and then the environment. Invalid values
// fall back to their defaults with a warning.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		Port:            getEnv("PORT", "3000"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		MaxScores:       getEnvInt("MAX_SCORES", 100),
		StaticDir:       getEnv("STATIC_DIR", "public"),
		ClientOrigin:    getEnv("CLIENT_ORIGIN", "*"),
		RateLimitRPS:    getEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 20),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr returns the listen address for Port.
func (c Config) Addr() string { return ":" + c.Port }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Warn().Str("key", key).Str("value", val).Int("default", fallback).Msg("invalid int, using default")
		return fallback
	}
	return i
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warn().Str("key", key).Str("value", val).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return d
}
