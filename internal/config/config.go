// Package config assembles the FinSight configuration from defaults,
// an optional .env file and FINSIGHT_* environment variables.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/opensource-finance/finsight/internal/domain"
)

// Load reads .env (if present) and returns the resulting configuration.
func Load() *domain.Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file, using process environment", "error", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a configuration using lookup for every variable.
// Unset or unparsable variables keep the profile default.
func FromEnv(lookup func(string) (string, bool)) *domain.Config {
	e := env{lookup: lookup}

	cfg := domain.DefaultConfig()
	if strings.EqualFold(e.str("FINSIGHT_PROFILE", ""), string(domain.ProfileProduction)) {
		cfg = domain.ProductionConfig()
	}

	cfg.Server.Host = e.str("FINSIGHT_HOST", cfg.Server.Host)
	cfg.Server.Port = e.int("FINSIGHT_PORT", cfg.Server.Port)

	cfg.Repository.Driver = e.str("FINSIGHT_DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = e.str("FINSIGHT_SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = e.str("FINSIGHT_PG_HOST", cfg.Repository.PostgresHost)
	cfg.Repository.PostgresPort = e.int("FINSIGHT_PG_PORT", cfg.Repository.PostgresPort)
	cfg.Repository.PostgresUser = e.str("FINSIGHT_PG_USER", cfg.Repository.PostgresUser)
	cfg.Repository.PostgresPassword = e.str("FINSIGHT_PG_PASSWORD", cfg.Repository.PostgresPassword)
	cfg.Repository.PostgresDB = e.str("FINSIGHT_PG_DB", cfg.Repository.PostgresDB)
	cfg.Repository.PostgresSSLMode = e.str("FINSIGHT_PG_SSLMODE", cfg.Repository.PostgresSSLMode)

	if addr := e.str("FINSIGHT_REDIS_ADDR", ""); addr != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.RedisAddr = addr
	}
	cfg.Cache.RedisPassword = e.str("FINSIGHT_REDIS_PASSWORD", cfg.Cache.RedisPassword)

	if url := e.str("FINSIGHT_NATS_URL", ""); url != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = url
	}
	cfg.EventBus.NATSToken = e.str("FINSIGHT_NATS_TOKEN", cfg.EventBus.NATSToken)
	cfg.EventBus.NATSQueueGroup = e.str("FINSIGHT_NATS_QUEUE", cfg.EventBus.NATSQueueGroup)

	cfg.Auth.JWTSecret = e.str("FINSIGHT_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = e.duration("FINSIGHT_TOKEN_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.Required = e.bool("FINSIGHT_AUTH_REQUIRED", cfg.Auth.Required)

	cfg.Analytics.TimeZone = e.str("FINSIGHT_TIMEZONE", cfg.Analytics.TimeZone)
	cfg.Analytics.AutoDetect = e.bool("FINSIGHT_AUTO_DETECT", cfg.Analytics.AutoDetect)

	cfg.Logging.Level = e.str("FINSIGHT_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = e.str("FINSIGHT_LOG_FORMAT", cfg.Logging.Format)
	if e.bool("FINSIGHT_DEBUG", false) {
		cfg.Logging.Level = "debug"
	}
	cfg.Tracing.Enabled = e.bool("FINSIGHT_TRACING", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = e.str("FINSIGHT_OTLP_ENDPOINT", cfg.Tracing.Endpoint)

	return cfg
}

// NewLogger returns a slog logger honoring the logging settings.
func NewLogger(cfg domain.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type env struct {
	lookup func(string) (string, bool)
}

func (e env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e env) int(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring invalid integer", "key", key, "value", v)
		return def
	}
	return n
}

func (e env) bool(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring invalid boolean", "key", key, "value", v)
		return def
	}
	return b
}

func (e env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring invalid duration", "key", key, "value", v)
		return def
	}
	return d
}
