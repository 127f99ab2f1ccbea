package inbox

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/instructorbook/libs/db"
)

// Recorder remembers consumed event ids. Record reports false for an id seen before.
type Recorder interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.PgCode(err) == db.CodeUniqueViolation {
		return false, nil
	}
	return false, err
}

// Memory is the in-process Recorder used with the memory storage driver.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]struct{}{}}
}

func (m *Memory) Record(_ context.Context, eventID string, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[eventID]; ok {
		return false, nil
	}
	m.seen[eventID] = struct{}{}
	return true, nil
}
