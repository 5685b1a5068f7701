package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Webhook   WebhookConfig
	Telemetry TelemetryConfig
}

type APIConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
	UserIDHeader    string
	MetricsAddr     string
}

type QueueConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency int
	MetricsAddr string
}

const (
	StorageBackendLocal = "local"
	StorageBackendMinio = "minio"
)

type StorageConfig struct {
	Backend    string
	OutputDir  string
	LocalRoot  string
	PublicBase string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
}

type DatabaseConfig struct {
	DSN string
}

type WebhookConfig struct {
	URL            string
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type TelemetryConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		API: APIConfig{
			Addr:            env("PIXELPRESS_API_ADDR", ":8080"),
			ReadTimeout:     envDuration("PIXELPRESS_API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    envDuration("PIXELPRESS_API_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     envDuration("PIXELPRESS_API_IDLE_TIMEOUT", 60*time.Second),
			RateLimit:       envInt("PIXELPRESS_RATE_LIMIT", 0),
			RateLimitWindow: envDuration("PIXELPRESS_RATE_LIMIT_WINDOW", time.Minute),
			UserIDHeader:    env("PIXELPRESS_USER_ID_HEADER", "X-User-ID"),
		},
		Queue: QueueConfig{
			Enabled:       envBool("PIXELPRESS_EVENTS_ENABLED", false),
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency: envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MetricsAddr: env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			Backend:    env("STORAGE_BACKEND", StorageBackendLocal),
			OutputDir:  env("STORAGE_OUTPUT_DIR", "images"),
			LocalRoot:  env("STORAGE_LOCAL_ROOT", "./uploads"),
			PublicBase: env("STORAGE_PUBLIC_BASE", ""),
			Endpoint:   env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:     env("MINIO_BUCKET", "pixelpress-images"),
			UseSSL:     envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Webhook: WebhookConfig{
			URL:            env("WEBHOOK_URL", ""),
			SigningSecret:  env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
		Telemetry: TelemetryConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
	}
}

// LocalPublicBase is the URL prefix for files served by the local backend.
func (s StorageConfig) LocalPublicBase() string {
	if s.PublicBase != "" {
		return s.PublicBase
	}
	return "/uploads"
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
