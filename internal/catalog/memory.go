package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dharmasatrya/airsearch/internal/timezone"
)

type MemoryStore struct {
	mu      sync.RWMutex
	flights map[string]Flight
	byRoute map[string][]string
}

func NewMemoryStore(flights []Flight) *MemoryStore {
	s := &MemoryStore{
		flights: make(map[string]Flight, len(flights)),
		byRoute: make(map[string][]string),
	}
	for _, f := range flights {
		s.put(f)
	}
	return s
}

func (s *MemoryStore) Put(f Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(f)
}

func (s *MemoryStore) put(f Flight) {
	f.Origin = strings.ToUpper(f.Origin)
	f.Destination = strings.ToUpper(f.Destination)
	if _, exists := s.flights[f.ID]; !exists {
		key := routeKey(f.Origin, f.Destination)
		s.byRoute[key] = append(s.byRoute[key], f.ID)
	}
	s.flights[f.ID] = f
}

func (s *MemoryStore) FindFlights(ctx context.Context, c Criteria) ([]Flight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, end, err := timezone.DayBounds(c.Date, c.Origin)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Flight
	for _, id := range s.byRoute[routeKey(c.Origin, c.Destination)] {
		f := s.flights[id]
		if c.Cabin != "" && !strings.EqualFold(f.Cabin, c.Cabin) {
			continue
		}
		if f.SeatsAvailable < c.Seats {
			continue
		}
		if f.DepartureTime.Before(start) || !f.DepartureTime.Before(end) {
			continue
		}
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DepartureTime.Equal(out[j].DepartureTime) {
			return out[i].DepartureTime.Before(out[j].DepartureTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetFlight(ctx context.Context, id string) (Flight, error) {
	if err := ctx.Err(); err != nil {
		return Flight{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.flights[id]
	if !ok {
		return Flight{}, ErrFlightNotFound
	}
	return f, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func routeKey(origin, destination string) string {
	return strings.ToUpper(origin) + "-" + strings.ToUpper(destination)
}
