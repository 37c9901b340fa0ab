// Package config loads service configuration from the environment. Every
// knob has a default that works for local development against a loopback
// Redis and a model volume under /models.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Model  ModelConfig
	Output OutputConfig
	Worker WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	APIKeyHeader string
	APIKeys      []string
}

// ModelConfig locates the voice model artifacts and the inference runtime.
// The API and worker share these paths via a common volume; only the worker
// ever talks to the runtime.
type ModelConfig struct {
	Dir            string
	DefaultSpeaker string
	RuntimeURL     string
	RuntimeTimeout time.Duration
	SampleRate     int
}

type OutputConfig struct {
	Dir string
}

// WorkerConfig tunes job execution. SoftTimeout must leave room before
// TaskTimeout for the job to fail cleanly before the broker's hard limit.
// MaxTasksPerProcess bounds a worker process's lifetime in completed jobs;
// 0 disables recycling.
type WorkerConfig struct {
	Concurrency        int
	TaskTimeout        time.Duration
	SoftTimeout        time.Duration
	MaxRetry           int
	ResultRetention    time.Duration
	MaxTasksPerProcess int
}

func Load() (*Config, error) {
	modelDir := getEnv("MODEL_DIR", "/models")

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 5000),
			RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 200),
			CORSOrigins:    splitKeys(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
			APIKeys:      splitKeys(getEnv("VALID_API_KEYS", "secret_development")),
		},
		Model: ModelConfig{
			Dir:            modelDir,
			DefaultSpeaker: getEnv("DEFAULT_SPEAKER_WAV", modelDir+"/vi_sample.wav"),
			RuntimeURL:     getEnv("MODEL_RUNTIME_URL", "http://localhost:8020"),
			RuntimeTimeout: getEnvDuration("MODEL_RUNTIME_TIMEOUT", 120*time.Second),
			SampleRate:     getEnvInt("MODEL_SAMPLE_RATE", 24000),
		},
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", "/outputs"),
		},
		Worker: WorkerConfig{
			Concurrency:        getEnvInt("WORKER_CONCURRENCY", 1),
			TaskTimeout:        getEnvDuration("TASK_TIMEOUT", 10*time.Minute),
			SoftTimeout:        getEnvDuration("TASK_SOFT_TIMEOUT", 9*time.Minute),
			MaxRetry:           getEnvInt("TASK_MAX_RETRY", 2),
			ResultRetention:    getEnvDuration("RESULT_RETENTION", 24*time.Hour),
			MaxTasksPerProcess: getEnvInt("WORKER_MAX_TASKS", 5),
		},
	}

	if cfg.Worker.SoftTimeout >= cfg.Worker.TaskTimeout {
		return nil, fmt.Errorf("TASK_SOFT_TIMEOUT (%s) must be below TASK_TIMEOUT (%s)",
			cfg.Worker.SoftTimeout, cfg.Worker.TaskTimeout)
	}
	if len(cfg.Auth.APIKeys) == 0 {
		return nil, fmt.Errorf("VALID_API_KEYS must contain at least one key")
	}

	return cfg, nil
}

// Addr is the API server's listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
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

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
