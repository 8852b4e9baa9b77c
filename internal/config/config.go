package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	// Invalid bearer tokens tolerated per client IP per minute.
	AuthFailureLimit int

	DB      DatabaseConfig
	Redis   RedisConfig
	Store   StoreConfig
	Remote  RemoteConfig
	Worker  WorkerConfig
	Pricing PricingConfig
	Catalog CatalogConfig
}

// DatabaseConfig contains PostgreSQL connection parameters for the catalog.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StoreConfig selects the persistent local store for session collections.
type StoreConfig struct {
	Driver     string // redis, sqlite or memory
	SQLitePath string
	TTL        time.Duration // 0 keeps collections until cleared
}

// RemoteConfig points at the authenticated cart/wishlist service.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	ReconcileInterval time.Duration
	SweepInterval     time.Duration
	SessionIdleTTL    time.Duration
}

// PricingConfig contains storefront pricing switches.
type PricingConfig struct {
	GatePrices bool // withhold prices from anonymous viewers (B2B)
}

// CatalogConfig contains product catalog cache settings.
type CatalogConfig struct {
	CacheTTL time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.AuthFailureLimit = getEnvInt("AUTH_FAILURE_LIMIT", 5)

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),

		MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
		MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Local store
	cfg.Store = StoreConfig{
		Driver:     strings.ToLower(getEnv("STORE_DRIVER", "redis")),
		SQLitePath: getEnv("STORE_SQLITE_PATH", "./data/collections.db"),
	}

	// Remote collection service
	cfg.Remote = RemoteConfig{
		BaseURL: strings.TrimSuffix(getEnv("REMOTE_BASE_URL", ""), "/"),
	}

	cfg.Pricing = PricingConfig{
		GatePrices: getEnvBool("GATE_PRICES", false),
	}

	var err error
	if cfg.Store.TTL, err = parseDurationEnv("STORE_TTL", "0s"); err != nil {
		return nil, fmt.Errorf("invalid STORE_TTL: %w", err)
	}
	if cfg.Remote.Timeout, err = parseDurationEnv("REMOTE_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid REMOTE_TIMEOUT: %w", err)
	}
	if cfg.Worker.ReconcileInterval, err = parseDurationEnv("RECONCILE_INTERVAL", "2m"); err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_INTERVAL: %w", err)
	}
	if cfg.Worker.SweepInterval, err = parseDurationEnv("SESSION_SWEEP_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_SWEEP_INTERVAL: %w", err)
	}
	if cfg.Worker.SessionIdleTTL, err = parseDurationEnv("SESSION_IDLE_TTL", "30m"); err != nil {
		return nil, fmt.Errorf("invalid SESSION_IDLE_TTL: %w", err)
	}
	if cfg.Catalog.CacheTTL, err = parseDurationEnv("CATALOG_CACHE_TTL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set for authentication")
	}
	if c.Remote.BaseURL == "" {
		return errors.New("REMOTE_BASE_URL must be set to sync authenticated collections")
	}
	if c.Worker.SweepInterval > 0 && c.Worker.SessionIdleTTL <= 0 {
		return errors.New("SESSION_IDLE_TTL must be positive when SESSION_SWEEP_INTERVAL is set")
	}
	switch c.Store.Driver {
	case "redis", "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("STORE_SQLITE_PATH must be set when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (want redis, sqlite or memory)", c.Store.Driver)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
