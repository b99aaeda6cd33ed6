package providers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dharmasatrya/airsearch/internal/catalog"
	"github.com/dharmasatrya/airsearch/internal/logging"
	"github.com/dharmasatrya/airsearch/internal/registry"
)

const (
	DriverAmadeus = "amadeus"
	DriverDuffel  = "duffel"
)

// Dependencies are shared by every client the pool builds.
type Dependencies struct {
	Catalog    catalog.Store
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// New builds the client for one configured supplier.
func New(s registry.Supplier, deps Dependencies) (Client, error) {
	switch s.Driver {
	case registry.DriverLocal:
		if deps.Catalog == nil {
			return nil, fmt.Errorf("supplier %s: local driver needs a catalog", s.Code)
		}
		return NewLocal(s.Code, deps.Catalog, deps.Logger), nil
	case DriverAmadeus:
		return NewAmadeus(s.Code, AmadeusConfig{
			BaseURL:      s.Settings.BaseURL,
			ClientID:     s.Settings.ClientID,
			ClientSecret: s.Settings.ClientSecret,
			Currency:     s.Settings.Currency,
		}, deps.HTTPClient, deps.Logger)
	case DriverDuffel:
		return NewDuffel(s.Code, DuffelConfig{
			BaseURL: s.Settings.BaseURL,
			Token:   s.Settings.Token,
		}, deps.HTTPClient, deps.Logger)
	default:
		return nil, fmt.Errorf("supplier %s: unknown driver %q", s.Code, s.Driver)
	}
}

type pooled struct {
	client   Client
	driver   string
	settings registry.Settings
}

// Pool holds one live client per supplier code.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]pooled
	deps    Dependencies
	logger  *slog.Logger
}

func NewPool(deps Dependencies) *Pool {
	return &Pool{
		clients: make(map[string]pooled),
		deps:    deps,
		logger:  logging.Default(deps.Logger).With("component", "supplier-pool"),
	}
}

// Sync makes the pool match the enabled suppliers. Clients whose driver and
// settings are unchanged are kept, so their caches and tokens survive a
// reload. A supplier whose client cannot be built is left out and reported in
// the returned error; the rest of the pool is still updated.
func (p *Pool) Sync(suppliers []registry.Supplier) error {
	p.mu.RLock()
	current := make(map[string]pooled, len(p.clients))
	for code, c := range p.clients {
		current[code] = c
	}
	p.mu.RUnlock()

	next := make(map[string]pooled, len(suppliers))
	var errs []error
	for _, s := range suppliers {
		if !s.Enabled {
			continue
		}
		if c, ok := current[s.Code]; ok && c.driver == s.Driver && c.settings == s.Settings {
			next[s.Code] = c
			continue
		}
		client, err := New(s, p.deps)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.logger.Info("supplier client built", "supplier", s.Code, "driver", s.Driver)
		next[s.Code] = pooled{client: client, driver: s.Driver, settings: s.Settings}
	}

	p.mu.Lock()
	p.clients = next
	p.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("build supplier clients: %w", errors.Join(errs...))
	}
	return nil
}

func (p *Pool) Get(code string) (Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.clients[code]
	return c.client, ok
}

// Set registers a prebuilt client, replacing any client with the same code.
func (p *Pool) Set(client Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[client.Code()] = pooled{client: client}
}
