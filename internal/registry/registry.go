// Package registry holds supplier configuration and live health state.
//
// The supplier map is guarded by an RWMutex that only protects membership;
// each supplier's configuration and health sit behind their own mutex so
// recording an outcome for one supplier never blocks another.
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/dharmasatrya/airsearch/internal/models"
)

const DriverLocal = "local"

type Settings struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Token        string
	Timeout      time.Duration
	Retries      int
	RateLimit    float64
	Burst        int
	Currency     string
}

type Supplier struct {
	Code     string
	Name     string
	Driver   string
	Enabled  bool
	Priority int
	Settings Settings
}

func (s Supplier) IsLocal() bool {
	return s.Driver == DriverLocal
}

// InMode reports whether the supplier takes part in searches of mode.
func (s Supplier) InMode(mode models.SearchMode) bool {
	switch mode {
	case models.ModeLocal:
		return s.IsLocal()
	case models.ModeExternal:
		return !s.IsLocal()
	default:
		return true
	}
}

type HealthStatus struct {
	Healthy             bool      `json:"healthy"`
	LastChecked         time.Time `json:"last_checked"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

type SupplierState struct {
	Supplier Supplier
	Health   HealthStatus
}

type entry struct {
	mu       sync.Mutex
	supplier Supplier
	health   HealthStatus
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// New builds a registry from suppliers in priority order.
func New(suppliers []Supplier) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry)}
	if err := r.Apply(suppliers); err != nil {
		return nil, err
	}
	return r, nil
}

// Apply replaces the supplier configuration. Suppliers that survive the
// reload keep their health; new suppliers start healthy. Slice order becomes
// priority order.
func (r *Registry) Apply(suppliers []Supplier) error {
	seen := make(map[string]bool, len(suppliers))
	for _, s := range suppliers {
		if s.Code == "" {
			return fmt.Errorf("registry: supplier without code")
		}
		if seen[s.Code] {
			return fmt.Errorf("registry: duplicate supplier %q", s.Code)
		}
		seen[s.Code] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make(map[string]*entry, len(suppliers))
	order := make([]string, 0, len(suppliers))
	for i, s := range suppliers {
		s.Priority = i
		if e, ok := r.entries[s.Code]; ok {
			e.mu.Lock()
			e.supplier = s
			e.mu.Unlock()
			entries[s.Code] = e
		} else {
			entries[s.Code] = &entry{supplier: s, health: HealthStatus{Healthy: true}}
		}
		order = append(order, s.Code)
	}
	r.entries = entries
	r.order = order
	return nil
}

func (r *Registry) Get(code string) (Supplier, bool) {
	e := r.entry(code)
	if e == nil {
		return Supplier{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.supplier, true
}

func (r *Registry) Health(code string) (HealthStatus, bool) {
	e := r.entry(code)
	if e == nil {
		return HealthStatus{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health, true
}

// Snapshot returns configuration and health for every supplier in priority
// order.
func (r *Registry) Snapshot() []SupplierState {
	r.mu.RLock()
	entries := make([]*entry, len(r.order))
	for i, code := range r.order {
		entries[i] = r.entries[code]
	}
	r.mu.RUnlock()

	out := make([]SupplierState, len(entries))
	for i, e := range entries {
		e.mu.Lock()
		out[i] = SupplierState{Supplier: e.supplier, Health: e.health}
		e.mu.Unlock()
	}
	return out
}

// update applies fn to one supplier's health under its own lock.
func (r *Registry) update(code string, fn func(*HealthStatus)) (HealthStatus, bool) {
	e := r.entry(code)
	if e == nil {
		return HealthStatus{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.health)
	return e.health, true
}

func (r *Registry) entry(code string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[code]
}
