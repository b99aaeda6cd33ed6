// Package config loads the process configuration from defaults, an optional
// YAML file and AIRSEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dharmasatrya/airsearch/internal/cache"
	"github.com/dharmasatrya/airsearch/internal/models"
	"github.com/dharmasatrya/airsearch/internal/providers"
	"github.com/dharmasatrya/airsearch/internal/registry"
)

const (
	CatalogMemory   = "memory"
	CatalogPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       LogConfig        `mapstructure:"log"`
	Search    SearchConfig     `mapstructure:"search"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Merge     MergeConfig      `mapstructure:"merge"`
	Currency  CurrencyConfig   `mapstructure:"currency"`
	Catalog   CatalogConfig    `mapstructure:"catalog"`
	Suppliers []SupplierConfig `mapstructure:"suppliers"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RetryAfter is advertised when no supplier could answer a search.
	RetryAfter time.Duration `mapstructure:"retry_after"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SearchConfig struct {
	Mode            string          `mapstructure:"mode"`
	MasterTimeout   time.Duration   `mapstructure:"master_timeout"`
	Parallel        bool            `mapstructure:"parallel"`
	MaxInFlight     int             `mapstructure:"max_in_flight"`
	SupplierTimeout time.Duration   `mapstructure:"supplier_timeout"`
	Backoff         BackoffConfig   `mapstructure:"backoff"`
	Health          HealthConfig    `mapstructure:"health"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type BackoffConfig struct {
	Initial    time.Duration `mapstructure:"initial"`
	Multiplier float64       `mapstructure:"multiplier"`
	Max        time.Duration `mapstructure:"max"`
}

type HealthConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ProbeInterval    time.Duration `mapstructure:"probe_interval"`
}

// RateLimitConfig is requests per second plus burst. Zero rps means no limit.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Driver  string        `mapstructure:"driver"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MergeConfig struct {
	Dedupe        bool   `mapstructure:"dedupe"`
	SortKey       string `mapstructure:"sort_key"`
	SortDirection string `mapstructure:"sort_direction"`
	MaxResults    int    `mapstructure:"max_results"`
}

// CurrencyConfig is an optional static rate table: units of each currency
// per one unit of Base. With no rates, mixed currencies are never compared.
type CurrencyConfig struct {
	Base  string             `mapstructure:"base"`
	Rates map[string]float64 `mapstructure:"rates"`
}

type CatalogConfig struct {
	Driver      string `mapstructure:"driver"`
	SeedFile    string `mapstructure:"seed_file"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Migrate     bool   `mapstructure:"migrate"`
}

type SupplierConfig struct {
	Code        string            `mapstructure:"code"`
	Name        string            `mapstructure:"name"`
	Driver      string            `mapstructure:"driver"`
	Enabled     *bool             `mapstructure:"enabled"`
	BaseURL     string            `mapstructure:"base_url"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Retries     int               `mapstructure:"retries"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Currency    string            `mapstructure:"currency"`
}

type CredentialsConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Token        string `mapstructure:"token"`
}

// DefaultSupplier is used when the configuration names no supplier at all.
func DefaultSupplier() SupplierConfig {
	return SupplierConfig{Code: "catalog", Name: "Internal catalog", Driver: registry.DriverLocal}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	if !models.SearchMode(c.Search.Mode).Valid() {
		add("search.mode %q: %w", c.Search.Mode, models.ErrInvalidMode)
	}
	if c.Search.MasterTimeout <= 0 {
		add("search.master_timeout must be positive")
	}
	if c.Search.MaxInFlight < 0 {
		add("search.max_in_flight must not be negative")
	}
	if c.Search.Backoff.Multiplier < 0 {
		add("search.backoff.multiplier must not be negative")
	}
	if c.Search.Health.FailureThreshold < 1 {
		add("search.health.failure_threshold must be at least 1")
	}
	if c.Search.Health.ProbeInterval <= 0 {
		add("search.health.probe_interval must be positive")
	}

	switch c.Cache.Driver {
	case cache.DriverMemory, cache.DriverNoOp:
	case cache.DriverRedis:
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr is required for the redis driver")
		}
	default:
		add("cache.driver %q is not memory, redis or noop", c.Cache.Driver)
	}

	if !models.SortKey(c.Merge.SortKey).Valid() {
		add("merge.sort_key %q: %w", c.Merge.SortKey, models.ErrInvalidSortKey)
	}
	if !models.SortDirection(c.Merge.SortDirection).Valid() {
		add("merge.sort_direction %q: %w", c.Merge.SortDirection, models.ErrInvalidSortOrder)
	}
	if c.Merge.MaxResults < 0 {
		add("merge.max_results must not be negative")
	}

	switch c.Catalog.Driver {
	case CatalogMemory:
	case CatalogPostgres:
		if c.Catalog.PostgresDSN == "" {
			add("catalog.postgres_dsn is required for the postgres driver")
		}
	default:
		add("catalog.driver %q is not memory or postgres", c.Catalog.Driver)
	}

	seen := make(map[string]bool, len(c.Suppliers))
	for i, s := range c.Suppliers {
		if s.Code == "" {
			add("suppliers[%d]: code is required", i)
			continue
		}
		if seen[s.Code] {
			add("suppliers[%d]: duplicate code %q", i, s.Code)
		}
		seen[s.Code] = true
		switch s.Driver {
		case registry.DriverLocal, providers.DriverAmadeus, providers.DriverDuffel:
		default:
			add("supplier %s: unknown driver %q", s.Code, s.Driver)
		}
		if s.Timeout < 0 || s.Retries < 0 {
			add("supplier %s: timeout and retries must not be negative", s.Code)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// SupplierList converts the supplier section into registry entries, in
// configuration order.
func (c *Config) SupplierList() []registry.Supplier {
	out := make([]registry.Supplier, 0, len(c.Suppliers))
	for _, s := range c.Suppliers {
		enabled := s.Enabled == nil || *s.Enabled
		out = append(out, registry.Supplier{
			Code:    s.Code,
			Name:    s.Name,
			Driver:  s.Driver,
			Enabled: enabled,
			Settings: registry.Settings{
				BaseURL:      s.BaseURL,
				ClientID:     s.Credentials.ClientID,
				ClientSecret: s.Credentials.ClientSecret,
				Token:        s.Credentials.Token,
				Timeout:      s.Timeout,
				Retries:      s.Retries,
				RateLimit:    s.RateLimit.RPS,
				Burst:        s.RateLimit.Burst,
				Currency:     s.Currency,
			},
		})
	}
	return out
}
