package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database
	DatabaseURL     string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns      int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns      int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	StartupRetryMax uint64 `env:"STARTUP_RETRY_MAX" envDefault:"8"`

	// Redis backs the idempotency ledger. Empty means in-process only.
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Job queue
	JobWorkers        int           `env:"JOB_WORKERS" envDefault:"4"`
	JobMaxAttempts    int           `env:"JOB_MAX_ATTEMPTS" envDefault:"3"`
	JobLease          time.Duration `env:"JOB_LEASE" envDefault:"5m"`
	ReadyBuffer       int           `env:"READY_BUFFER" envDefault:"1000"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1s"`
	ReaperInterval    time.Duration `env:"REAPER_INTERVAL" envDefault:"30s"`
	SchedulerBatch    int           `env:"SCHEDULER_BATCH" envDefault:"100"`
	// Retry backoff durations: index 0 = first retry delay, etc.
	RetryBackoff []time.Duration `env:"JOB_BACKOFF" envSeparator:"," envDefault:"5s,30s,2m"`

	// Posts
	PostDelay      time.Duration `env:"POST_DELAY" envDefault:"5s"`
	PostRateLimit  int           `env:"POST_RATE_LIMIT" envDefault:"3"`
	PostRateWindow time.Duration `env:"POST_RATE_WINDOW" envDefault:"60s"`
	PostRateKeys   int           `env:"POST_RATE_KEYS" envDefault:"10000"`

	// Notifications and timeline
	FanOutConcurrency int           `env:"FANOUT_CONCURRENCY" envDefault:"16"`
	AuthorCacheSize   int           `env:"AUTHOR_CACHE_SIZE" envDefault:"4096"`
	AuthorCacheTTL    time.Duration `env:"AUTHOR_CACHE_TTL" envDefault:"1m"`
	ConnOutbox        int           `env:"CONN_OUTBOX" envDefault:"64"`

	// Browser origins allowed by CORS
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads an optional .env file and then parses the process environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.JobWorkers < 1:
		return errors.New("JOB_WORKERS must be at least 1")
	case c.JobMaxAttempts < 0:
		return errors.New("JOB_MAX_ATTEMPTS must not be negative")
	case len(c.RetryBackoff) == 0:
		return errors.New("JOB_BACKOFF must list at least one duration")
	case c.ReadyBuffer < 1:
		return errors.New("READY_BUFFER must be at least 1")
	case c.FanOutConcurrency < 1:
		return errors.New("FANOUT_CONCURRENCY must be at least 1")
	case c.PostRateLimit < 1:
		return errors.New("POST_RATE_LIMIT must be at least 1")
	}
	return nil
}
