package policy

import (
	"context"
	"sync"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

// TypeProvider resolves appointment types owned by the catalog.
type TypeProvider interface {
	AppointmentType(ctx context.Context, id string) (model.AppointmentType, error)
}

// StaticProvider serves a fixed set of types; used by the memory driver and tests.
type StaticProvider struct {
	mu    sync.RWMutex
	types map[string]model.AppointmentType
}

func NewStaticProvider(types ...model.AppointmentType) *StaticProvider {
	p := &StaticProvider{types: map[string]model.AppointmentType{}}
	for _, t := range types {
		p.types[t.ID] = t
	}
	return p
}

func (p *StaticProvider) AppointmentType(_ context.Context, id string) (model.AppointmentType, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.types[id]
	if !ok || !t.Active {
		return model.AppointmentType{}, apperr.ErrNotFound.Withf("appointment type %q not found", id)
	}
	return t, nil
}

func (p *StaticProvider) Put(t model.AppointmentType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types[t.ID] = t
}
