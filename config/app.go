package config

import "time"

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Env         string `env:"APP_ENV" default:"dev"`

	// RedisAddr enables the shared quote cache; empty keeps quotes in process.
	RedisAddr string `env:"REDIS_ADDR"`

	Gateway Gateway

	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" default:"5s"`
	CommitRetries int           `env:"COMMIT_RETRIES" default:"3"`
	QuoteTTL      time.Duration `env:"QUOTE_TTL" default:"15m"`
	// SweepInterval of zero disables the background overdue sweep.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" default:"0"`
}

type Gateway struct {
	ClientKey string        `env:"PG_API_KEY"`
	SecretKey string        `env:"PG_SECRET_KEY"`
	BaseURL   string        `env:"PG_BASE_URL"`
	Timeout   time.Duration `env:"GATEWAY_TIMEOUT" default:"10s"`
}
