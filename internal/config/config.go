// Package config reads the service configuration from the environment.
//
// A .env file in the working directory (or the file named by HERMOD_ENV_FILE)
// is loaded first; variables already present in the environment win.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Postmark PostmarkConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	Addr           string
	GinMode        string
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig values are kept as raw strings; the services parse and
// validate them so a bad value surfaces as ErrMisconfigured at startup.
type AuthConfig struct {
	JWTSecret       string
	JWTTTL          string
	HashWorkers     string
	ResetRequestTTL string
	ResetURL        string

	// ResetPruneSchedule is a cron spec for deleting expired reset requests.
	ResetPruneSchedule string
	ResetEmailTemplate string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// TracingConfig enables OTLP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    string
}

type PostmarkConfig struct {
	BaseURL     string
	ServerToken string
	From        string
	Timeout     string
}

func Load() Config {
	loadDotEnv()

	return Config{
		Server: ServerConfig{
			Addr:           getenv("HERMOD_ADDR", ":8000"),
			GinMode:        os.Getenv("GIN_MODE"),
			AllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:          os.Getenv("JWT_SECRET"),
			JWTTTL:             getenv("JWT_TTL", "1h"),
			HashWorkers:        os.Getenv("HASH_WORKERS"),
			ResetRequestTTL:    getenv("RESET_REQUEST_TTL", "1h"),
			ResetURL:           getenv("RESET_URL", "http://localhost:3000/reset-password"),
			ResetPruneSchedule: getenv("RESET_PRUNE_SCHEDULE", "@every 10m"),
			ResetEmailTemplate: os.Getenv("RESET_EMAIL_TEMPLATE"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Postmark: PostmarkConfig{
			BaseURL:     getenv("POSTMARK_BASE_URL", "https://api.postmarkapp.com/"),
			ServerToken: os.Getenv("POSTMARK_SERVER_TOKEN"),
			From:        os.Getenv("POSTMARK_FROM"),
			Timeout:     getenv("POSTMARK_TIMEOUT", "5s"),
		},
		Tracing: TracingConfig{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName: getenv("OTEL_SERVICE_NAME", "hermod"),
			Insecure:    getenv("OTEL_EXPORTER_OTLP_INSECURE", "true"),
		},
	}
}

func loadDotEnv() {
	path := getenv("HERMOD_ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	// godotenv.Load never overrides variables that are already set.
	_ = godotenv.Load(path)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
