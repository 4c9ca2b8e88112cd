package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/tmdgusya/crawl-selector/internal/logger"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Default values.
const (
	defaultPort            = 8088
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second

	defaultRedisKeyPrefix = "crawl-selector"

	defaultDBHost       = "localhost"
	defaultDBPort       = "5432"
	defaultDBSSLMode    = "disable"
	defaultMigrationDir = "migrations"

	defaultFetchTimeout   = 15 * time.Second
	defaultUserAgent      = "crawl-selector/1.0 (+https://crawl-bot)"
	defaultMaxBodyBytes   = 10 << 20
	defaultCacheTTL       = 2 * time.Minute
	defaultCacheSize      = 64
	defaultRatePerHost    = 2.0
	defaultHoverDebounce  = 100 * time.Millisecond
	defaultFrameInterval  = 16 * time.Millisecond
	defaultPreviewLimit   = 10
	defaultAncestorDepth  = 5
	defaultMaxAlternative = 4
	defaultRequestTimeout = 5 * time.Second
)

// Config is the root configuration.
type Config struct {
	Debug     bool            `yaml:"debug" env:"APP_DEBUG"`
	Server    ServerConfig    `yaml:"server"`
	Logging   logger.Config   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Picker    PickerConfig    `yaml:"picker"`
	Messaging MessagingConfig `yaml:"messaging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
}

// StoreConfig selects the recipe store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER"`
}

// RedisConfig configures the redis recipe store.
type RedisConfig struct {
	Address   string `yaml:"address" env:"REDIS_ADDRESS"`
	Password  string `yaml:"password" env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX"`
}

// DatabaseConfig configures the postgres recipe store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"POSTGRES_HOST"`
	Port           string `yaml:"port" env:"POSTGRES_PORT"`
	User           string `yaml:"user" env:"POSTGRES_USER"`
	Password       string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName         string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode        string `yaml:"sslmode" env:"POSTGRES_SSLMODE"`
	MigrationsPath string `yaml:"migrations_path" env:"POSTGRES_MIGRATIONS_PATH"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// FetchConfig configures out-of-band page fetching.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout" env:"FETCH_TIMEOUT"`
	UserAgent    string        `yaml:"user_agent" env:"FETCH_USER_AGENT"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"FETCH_MAX_BODY_BYTES"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"FETCH_CACHE_TTL"`
	CacheSize    int           `yaml:"cache_size" env:"FETCH_CACHE_SIZE"`
	RatePerHost  float64       `yaml:"rate_per_host" env:"FETCH_RATE_PER_HOST"`
}

// PickerConfig tunes the interactive picking session.
type PickerConfig struct {
	HoverDebounce   time.Duration `yaml:"hover_debounce"`
	FrameInterval   time.Duration `yaml:"frame_interval"`
	PreviewLimit    int           `yaml:"preview_limit"`
	AncestorDepth   int           `yaml:"ancestor_depth"`
	MaxAlternatives int           `yaml:"max_alternatives"`
}

// MessagingConfig configures cross-context requests.
type MessagingConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" env:"MESSAGING_REQUEST_TIMEOUT"`
	// RemoteContent serves the content context over a websocket peer instead
	// of the in-process page host.
	RemoteContent bool `yaml:"remote_content" env:"MESSAGING_REMOTE_CONTENT"`
}

// Load reads the configuration at path with defaults and env overrides applied,
// then validates it.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithDefaults[Config](path, SetDefaults)
	if err != nil {
		return nil, err
	}
	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}
	return cfg, nil
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	SetDefaults(cfg)
	return cfg
}

// SetDefaults fills every zero value with its default.
func SetDefaults(cfg *Config) {
	setDefault(&cfg.Server.Port, defaultPort)
	setDefault(&cfg.Server.ReadTimeout, defaultReadTimeout)
	setDefault(&cfg.Server.WriteTimeout, defaultWriteTimeout)
	setDefault(&cfg.Server.ShutdownTimeout, defaultShutdownTimeout)
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}

	cfg.Logging.SetDefaults()
	if cfg.Debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	setDefault(&cfg.Store.Driver, DriverMemory)
	setDefault(&cfg.Redis.Address, "localhost:6379")
	setDefault(&cfg.Redis.KeyPrefix, defaultRedisKeyPrefix)

	setDefault(&cfg.Database.Host, defaultDBHost)
	setDefault(&cfg.Database.Port, defaultDBPort)
	setDefault(&cfg.Database.User, "postgres")
	setDefault(&cfg.Database.DBName, "crawl_selector")
	setDefault(&cfg.Database.SSLMode, defaultDBSSLMode)
	setDefault(&cfg.Database.MigrationsPath, defaultMigrationDir)

	setDefault(&cfg.Fetch.Timeout, defaultFetchTimeout)
	setDefault(&cfg.Fetch.UserAgent, defaultUserAgent)
	setDefault(&cfg.Fetch.MaxBodyBytes, defaultMaxBodyBytes)
	setDefault(&cfg.Fetch.CacheTTL, defaultCacheTTL)
	setDefault(&cfg.Fetch.CacheSize, defaultCacheSize)
	setDefault(&cfg.Fetch.RatePerHost, defaultRatePerHost)

	setDefault(&cfg.Picker.HoverDebounce, defaultHoverDebounce)
	setDefault(&cfg.Picker.FrameInterval, defaultFrameInterval)
	setDefault(&cfg.Picker.PreviewLimit, defaultPreviewLimit)
	setDefault(&cfg.Picker.AncestorDepth, defaultAncestorDepth)
	setDefault(&cfg.Picker.MaxAlternatives, defaultMaxAlternative)

	setDefault(&cfg.Messaging.RequestTimeout, defaultRequestTimeout)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, redis, postgres", c.Store.Driver))
	}

	if c.Store.Driver == DriverRedis && c.Redis.Address == "" {
		errs = append(errs, errors.New("redis.address is required for the redis store"))
	}
	if c.Store.Driver == DriverPostgres && c.Database.DBName == "" {
		errs = append(errs, errors.New("database.dbname is required for the postgres store"))
	}

	for name, d := range map[string]time.Duration{
		"fetch.timeout":             c.Fetch.Timeout,
		"picker.hover_debounce":     c.Picker.HoverDebounce,
		"picker.frame_interval":     c.Picker.FrameInterval,
		"messaging.request_timeout": c.Messaging.RequestTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.Picker.PreviewLimit <= 0 {
		errs = append(errs, errors.New("picker.preview_limit must be positive"))
	}
	if c.Fetch.RatePerHost < 0 {
		errs = append(errs, errors.New("fetch.rate_per_host must not be negative"))
	}

	return errors.Join(errs...)
}
