package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how stale a cached follower count can get.
const DefaultTTL = 10 * time.Minute

// FollowerCounts caches the number of followers per author.
// Get reports (count, true, nil) on a hit and (0, false, nil) on a miss.
type FollowerCounts interface {
	Get(ctx context.Context, authorID string) (int64, bool, error)
	Set(ctx context.Context, authorID string, count int64) error
	Invalidate(ctx context.Context, authorID string) error
	Close() error
}

type memoryEntry struct {
	count   int64
	expires time.Time
}

// MemoryFollowerCounts is an in-process FollowerCounts used when no Redis is configured.
type MemoryFollowerCounts struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryFollowerCounts(ttl time.Duration) *MemoryFollowerCounts {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryFollowerCounts{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryFollowerCounts) Get(_ context.Context, authorID string) (int64, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[authorID]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expires) {
		return 0, false, nil
	}
	return e.count, true, nil
}

func (m *MemoryFollowerCounts) Set(_ context.Context, authorID string, count int64) error {
	m.mu.Lock()
	m.entries[authorID] = memoryEntry{count: count, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryFollowerCounts) Invalidate(_ context.Context, authorID string) error {
	m.mu.Lock()
	delete(m.entries, authorID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryFollowerCounts) Close() error {
	return nil
}
