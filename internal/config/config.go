package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Ledger   LedgerConfig
	MongoDB  MongoDBConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	Cron     CronConfig
	Reports  ReportsConfig
	OTEL     OTELConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port       string
	AppBaseURL string // Used for notification deep links
}

// LedgerConfig selects the store and the studio's calendar
type LedgerConfig struct {
	Backend  string
	Timezone string
	Location *time.Location
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	URL      string
	MaxConns int32
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// FirebaseConfig holds Firebase Admin SDK configuration
type FirebaseConfig struct {
	ProjectID   string
	PrivateKey  string // Base64 encoded
	ClientEmail string
}

// Enabled reports whether push delivery is configured
func (f FirebaseConfig) Enabled() bool {
	return f.ProjectID != "" && f.PrivateKey != "" && f.ClientEmail != ""
}

// CronConfig holds the shared secret of the scheduled trigger
type CronConfig struct {
	Secret string
}

// ReportsConfig bounds weekly report runs
type ReportsConfig struct {
	Concurrency   int
	MemberTimeout time.Duration
	RunTimeout    time.Duration
}

// OTELConfig holds OpenTelemetry export configuration
type OTELConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	InstanceID     string // Grafana Cloud basic auth user
	Token          string
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			AppBaseURL: strings.TrimRight(getEnv("APP_BASE_URL", ""), "/"),
		},
		Ledger: LedgerConfig{
			Backend:  strings.ToLower(getEnv("LEDGER_BACKEND", BackendMongo)),
			Timezone: getEnv("TIMEZONE", "Europe/Istanbul"),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			Database: getEnv("MONGODB_DATABASE", "lesson_ledger"),
		},
		Postgres: PostgresConfig{
			URL:      getEnv("POSTGRES_URL", ""),
			MaxConns: int32(getEnvAsInt64("POSTGRES_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Firebase: FirebaseConfig{
			ProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
			PrivateKey:  getEnv("FIREBASE_PRIVATE_KEY", ""),
			ClientEmail: getEnv("FIREBASE_CLIENT_EMAIL", ""),
		},
		Cron: CronConfig{
			Secret: getEnv("CRON_SECRET", ""),
		},
		Reports: ReportsConfig{
			Concurrency:   int(getEnvAsInt64("REPORT_CONCURRENCY", 8)),
			MemberTimeout: getEnvAsDuration("REPORT_MEMBER_TIMEOUT", 30*time.Second),
			RunTimeout:    getEnvAsDuration("REPORT_RUN_TIMEOUT", 10*time.Minute),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "lesson-ledger"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", "development"),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and resolves
// the ledger timezone.
func (c *Config) Validate() error {
	if c.Cron.Secret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}

	switch c.Ledger.Backend {
	case BackendMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo backend")
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("LEDGER_BACKEND must be one of mongo, postgres, memory (got %q)", c.Ledger.Backend)
	}

	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Ledger.Timezone, err)
	}
	c.Ledger.Location = loc

	f := c.Firebase
	if (f.ProjectID != "" || f.PrivateKey != "" || f.ClientEmail != "") && !f.Enabled() {
		return fmt.Errorf("FIREBASE_PROJECT_ID, FIREBASE_PRIVATE_KEY and FIREBASE_CLIENT_EMAIL must be set together")
	}

	if c.Reports.Concurrency <= 0 {
		return fmt.Errorf("REPORT_CONCURRENCY must be positive")
	}
	if c.OTEL.Enabled && c.OTEL.Endpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as int64 or returns a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("45s", "2m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
