package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dharmasatrya/airsearch/internal/models"
)

const memoryShards = 32

type memoryEntry struct {
	set      *models.MergedResultSet
	storedAt time.Time
	expires  time.Time
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// MemoryStore keeps result sets in process. Entries expire lazily: an expired
// entry is dropped by the lookup that finds it.
type MemoryStore struct {
	shards [memoryShards]*memoryShard
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{entries: make(map[string]memoryEntry)}
	}
	return s
}

// WithClock replaces the store's time source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*models.MergedResultSet, time.Time, bool, error) {
	sh := s.shard(key)
	now := s.now()

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, time.Time{}, false, nil
	}
	if !now.Before(e.expires) {
		sh.mu.Lock()
		// Another writer may have replaced it meanwhile.
		if cur, ok := sh.entries[key]; ok && !now.Before(cur.expires) {
			delete(sh.entries, key)
		}
		sh.mu.Unlock()
		return nil, time.Time{}, false, nil
	}
	return e.set, e.storedAt, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, set *models.MergedResultSet, ttl time.Duration) error {
	now := s.now()
	sh := s.shard(key)
	sh.mu.Lock()
	sh.entries[key] = memoryEntry{set: set, storedAt: now, expires: now.Add(ttl)}
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Len counts live and not yet collected entries.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

func (s *MemoryStore) Close() error {
	return nil
}
