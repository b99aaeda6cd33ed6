package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dharmasatrya/airsearch/internal/logging"
)

// EnvPrefix prefixes every environment override, with dots in keys turned
// into underscores: AIRSEARCH_SEARCH_MASTER_TIMEOUT sets search.master_timeout.
const EnvPrefix = "AIRSEARCH"

// Loader reads configuration and, once watching, re-reads it when the file
// changes.
type Loader struct {
	v      *viper.Viper
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewLoader reads path when given, otherwise $AIRSEARCH_CONFIG, otherwise
// config.yaml from the working directory, ./config or /etc/airsearch.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	return &Loader{
		v:      viper.New(),
		path:   path,
		logger: logging.Default(logger).With("component", "config"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.retry_after", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("search.mode", "hybrid")
	v.SetDefault("search.master_timeout", "5s")
	v.SetDefault("search.parallel", true)
	v.SetDefault("search.max_in_flight", 0)
	v.SetDefault("search.supplier_timeout", "2s")
	v.SetDefault("search.backoff.initial", "100ms")
	v.SetDefault("search.backoff.multiplier", 2.0)
	v.SetDefault("search.backoff.max", "1s")
	v.SetDefault("search.health.failure_threshold", 3)
	v.SetDefault("search.health.probe_interval", "30s")
	v.SetDefault("search.rate_limit.rps", 10.0)
	v.SetDefault("search.rate_limit.burst", 20)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.prefix", "airsearch")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("merge.dedupe", true)
	v.SetDefault("merge.sort_key", "price")
	v.SetDefault("merge.sort_direction", "asc")
	v.SetDefault("merge.max_results", 200)

	v.SetDefault("currency.base", "USD")

	v.SetDefault("catalog.driver", CatalogMemory)
	v.SetDefault("catalog.seed_file", "")
	v.SetDefault("catalog.postgres_dsn", "")
	v.SetDefault("catalog.migrate", false)
}

// Load reads and validates the configuration. A missing file is only an
// error when a path was given explicitly.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	setDefaults(l.v)
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.path != "" {
		l.v.SetConfigFile(l.path)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		l.v.AddConfigPath("./config")
		l.v.AddConfigPath("/etc/airsearch")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		l.logger.Info("no config file found, using defaults and environment")
	} else {
		l.logger.Info("config file loaded", "path", l.v.ConfigFileUsed())
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if len(cfg.Suppliers) == 0 {
		cfg.Suppliers = []SupplierConfig{DefaultSupplier()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFile is the file Load read, or "" when running on defaults.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with every valid configuration written to the file after
// Load. Invalid edits are logged and skipped. Watch is a no-op when no file
// was loaded.
func (l *Loader) Watch(fn func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			l.logger.Warn("config change rejected", "path", e.Name, "error", err)
			return
		}
		l.logger.Info("config reloaded", "path", e.Name)
		fn(cfg)
	})
	l.v.WatchConfig()
}
