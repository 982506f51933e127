package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the portal hosts.
type Config struct {
	App        AppConfig
	API        APIConfig
	Session    SessionConfig
	Exchange   ExchangeConfig
	Readiness  ReadinessConfig
	TokenStore TokenStoreConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Visitors   VisitorConfig
	Logger     LoggerConfig
}

// AppConfig controls web shell level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL       string
	BackendOrigin string
}

// SessionConfig tunes the session verifier.
type SessionConfig struct {
	VerifyTimeout time.Duration
	VerifyRetries int
	VerifyBackoff time.Duration
}

// ExchangeConfig tunes the code exchange coordinator and callback flow.
type ExchangeConfig struct {
	RetryInterval      time.Duration
	RetryWindow        time.Duration
	SuccessDelay       time.Duration
	DefaultDestination string
}

// ReadinessConfig tunes the backend readiness prober.
type ReadinessConfig struct {
	Timeout  time.Duration
	Interval time.Duration
}

// TokenStoreConfig selects where the bearer credential is persisted.
type TokenStoreConfig struct {
	Driver string
	Dir    string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// VisitorConfig controls the per-visitor controller registry of the web shell.
type VisitorConfig struct {
	CookieName  string
	IdleTimeout time.Duration
	// WaitTimeout bounds how long a guarded request waits for a loading session.
	WaitTimeout time.Duration
	MaxVisitors int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
	Output string
}

// Token store drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Load reads configuration from environment variables, applying defaults where possible.
// defaultDriver is the token store used when TOKEN_STORE is unset; hosts differ here.
func Load(defaultDriver string) (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	baseURL := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		API: APIConfig{
			BaseURL:       baseURL,
			BackendOrigin: strings.TrimRight(getEnv("BACKEND_ORIGIN", baseURL), "/"),
		},
		Session: SessionConfig{
			VerifyTimeout: getEnvAsMillis("SESSION_VERIFY_TIMEOUT_MS", 8000),
			VerifyRetries: getEnvAsInt("SESSION_VERIFY_RETRIES", 2),
			VerifyBackoff: getEnvAsMillis("SESSION_VERIFY_BACKOFF_MS", 500),
		},
		Exchange: ExchangeConfig{
			RetryInterval:      getEnvAsMillis("EXCHANGE_RETRY_INTERVAL_MS", 1000),
			RetryWindow:        getEnvAsMillis("EXCHANGE_RETRY_WINDOW_MS", 10000),
			SuccessDelay:       getEnvAsMillis("EXCHANGE_SUCCESS_DELAY_MS", 1500),
			DefaultDestination: getEnv("EXCHANGE_DEFAULT_DESTINATION", "/app"),
		},
		Readiness: ReadinessConfig{
			Timeout:  getEnvAsMillis("READINESS_TIMEOUT_MS", 1500),
			Interval: getEnvAsMillis("READINESS_INTERVAL_MS", 1200),
		},
		TokenStore: TokenStoreConfig{
			Driver: strings.ToLower(getEnv("TOKEN_STORE", defaultDriver)),
			Dir:    getEnv("TOKEN_STORE_DIR", defaultStoreDir()),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Visitors: VisitorConfig{
			CookieName:  getEnv("VISITOR_COOKIE", "tp_visitor"),
			IdleTimeout: time.Duration(getEnvAsInt("VISITOR_IDLE_MINUTES", 30)) * time.Minute,
			WaitTimeout: getEnvAsMillis("VISITOR_WAIT_MS", 2000),
			MaxVisitors: getEnvAsInt("VISITOR_MAX", 10000),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
	}

	switch cfg.TokenStore.Driver {
	case DriverMemory, DriverFile, DriverRedis, DriverPostgres:
	default:
		return nil, fmt.Errorf("invalid TOKEN_STORE %q", cfg.TokenStore.Driver)
	}
	if cfg.TokenStore.Driver == DriverPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("TOKEN_STORE=postgres requires POSTGRES_DSN")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IsDevelopment reports whether debug surfaces should be exposed.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

func defaultStoreDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "ticket-portal")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ticket-portal")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsMillis(key string, fallback int) time.Duration {
	ms := getEnvAsInt(key, fallback)
	if ms < 0 {
		ms = fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
