package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

func Load() App {
	cfg := App{
		Port:        getenv("APP_PORT", "8080"),
		DatabaseURL: must("DATABASE_URL"),
		JWTSecret:   getenv("JWT_SECRET", "local_dev_secret"),
		Env:         getenv("APP_ENV", "dev"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		Gateway: Gateway{
			ClientKey: os.Getenv("PG_API_KEY"),
			SecretKey: os.Getenv("PG_SECRET_KEY"),
			BaseURL:   os.Getenv("PG_BASE_URL"),
			Timeout:   duration("GATEWAY_TIMEOUT", 10*time.Second),
		},
		StoreTimeout:  duration("STORE_TIMEOUT", 5*time.Second),
		CommitRetries: integer("COMMIT_RETRIES", 3),
		QuoteTTL:      duration("QUOTE_TTL", 15*time.Minute),
		SweepInterval: duration("SWEEP_INTERVAL", 0),
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		slog.Error("required env missing", "key", k)
		panic("missing env " + k)
	}
	return v
}

func duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("bad duration env, using default", "key", k, "value", v, "default", def)
		return def
	}
	return d
}

func integer(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("bad integer env, using default", "key", k, "value", v, "default", def)
		return def
	}
	return n
}
