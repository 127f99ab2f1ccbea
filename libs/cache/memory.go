package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"
)

// Memory is a process-local Store used when Redis is not configured.
// Patterns follow path.Match, which covers the "prefix:*" keys used here.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now, entries: map[string]memoryEntry{}}
}

func (m *Memory) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrMiss
	}
	if err := json.Unmarshal(e.payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	e := memoryEntry{payload: payload}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match pattern %s: %w", pattern, err)
		}
		if ok {
			delete(m.entries, key)
		}
	}
	return nil
}
