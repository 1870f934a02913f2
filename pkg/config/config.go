package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "storefront"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv     = "STOREFRONT_APP_ENV"
	EnvAPIBaseURL = "STOREFRONT_API_BASE_URL"
	EnvRedisURL   = "STOREFRONT_REDIS_URL"
)

// Backends accepted for guest ledger persistence.
const (
	StorageBackendSQLite = "sqlite"
	StorageBackendRedis  = "redis"
	StorageBackendMemory = "memory"
)

type Config struct {
	App     AppConfig
	API     APIConfig
	Storage StorageConfig
	Redis   RedisConfig
}

// Load reads .env (if present) and the STOREFRONT_* environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.ensureBackend(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type APIConfig struct {
	BaseURL string `envconfig:"STOREFRONT_API_BASE_URL" required:"true"`

	// One client-wide timeout for every call; the cart never overrides it.
	Timeout time.Duration `envconfig:"STOREFRONT_API_TIMEOUT" default:"10s"`

	MaxRetries uint          `envconfig:"STOREFRONT_API_MAX_RETRIES" default:"2"`
	RetryDelay time.Duration `envconfig:"STOREFRONT_API_RETRY_DELAY" default:"250ms"`

	// LoginURL is where the shell sends the user on a 401.
	LoginURL string `envconfig:"STOREFRONT_LOGIN_URL" default:"/login"`
}

type StorageConfig struct {
	Backend    string `envconfig:"STOREFRONT_STORAGE_BACKEND" default:"sqlite"`
	SQLitePath string `envconfig:"STOREFRONT_STORAGE_SQLITE_PATH" default:"storefront.db"`
	LedgerKey  string `envconfig:"STOREFRONT_GUEST_CART_KEY" default:"pf:guest_cart"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (s *StorageConfig) ensureBackend() error {
	backend := strings.ToLower(strings.TrimSpace(s.Backend))
	switch backend {
	case StorageBackendSQLite, StorageBackendRedis, StorageBackendMemory:
		s.Backend = backend
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}
