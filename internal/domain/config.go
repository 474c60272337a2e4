package domain

import "time"

// Config holds the complete FinSight configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Profile selects the infrastructure defaults: "local" or "production".
	Profile Profile `json:"profile"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	Auth      AuthConfig      `json:"auth"`
	Analytics AnalyticsConfig `json:"analytics"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// Profile represents a deployment profile.
type Profile string

const (
	// ProfileLocal runs on SQLite, an in-memory cache and Go channels.
	ProfileLocal Profile = "local"

	// ProfileProduction runs on PostgreSQL, Redis and NATS.
	ProfileProduction Profile = "production"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// AuthConfig holds login and token settings.
type AuthConfig struct {
	JWTSecret string        `json:"-"`
	TokenTTL  time.Duration `json:"tokenTTL"`

	// Required makes every non-auth route demand a bearer token.
	Required bool `json:"required"`

	// Login throttling: MaxFailures within FailureWindow lock the username.
	MaxFailures   int           `json:"maxFailures"`
	FailureWindow time.Duration `json:"failureWindow"`
}

// AnalyticsConfig holds settings shared by the detectors and aggregators.
type AnalyticsConfig struct {
	// TimeZone names the location used for calendar dates (IANA name).
	TimeZone string `json:"timeZone"`

	// AutoDetect re-runs subscription detection after each new expense.
	AutoDetect bool `json:"autoDetect"`

	// RuleWorkers bounds concurrent rule evaluations per assessment.
	RuleWorkers int `json:"ruleWorkers"`
}

// Location resolves TimeZone, falling back to UTC.
func (a AnalyticsConfig) Location() *time.Location {
	if a.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`

	// Endpoint is an OTLP/gRPC collector address. Empty keeps spans in-process.
	Endpoint string `json:"endpoint"`
}

// DefaultConfig returns the single-node configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Profile: ProfileLocal,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./finsight.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     15 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Auth: AuthConfig{
			JWTSecret:     "change-me",
			TokenTTL:      24 * time.Hour,
			MaxFailures:   5,
			FailureWindow: 15 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			TimeZone:    "UTC",
			RuleWorkers: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "finsight",
		},
	}
}

// ProductionConfig returns a configuration backed by PostgreSQL, Redis and NATS.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Profile = ProfileProduction
	cfg.Repository = RepositoryConfig{
		Driver:          "postgres",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresUser:    "finsight",
		PostgresDB:      "finsight",
		PostgresSSLMode: "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
