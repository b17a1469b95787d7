package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"pettrace/internal/domain/events"
)

// eventRepo guarda en orden de inserción; byID para lookup.
type eventRepo struct {
	mu    sync.RWMutex
	items []events.RegistryEvent
	byID  map[string]int
}

func NewEventRepo() events.Repository {
	return &eventRepo{
		byID: make(map[string]int),
	}
}

func (r *eventRepo) Create(ctx context.Context, e events.RegistryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("event id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("event already exists")
	}

	r.byID[e.ID] = len(r.items)
	r.items = append(r.items, e)
	return nil
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (events.RegistryEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return events.RegistryEvent{}, events.ErrNotFound
	}
	return r.items[i], nil
}

func (r *eventRepo) ListByReport(ctx context.Context, reportID uint64, filter events.ListFilter) ([]events.RegistryEvent, error) {
	return r.list(filter, func(e events.RegistryEvent) bool { return e.ReportID == reportID })
}

func (r *eventRepo) List(ctx context.Context, filter events.ListFilter) ([]events.RegistryEvent, error) {
	return r.list(filter, nil)
}

func (r *eventRepo) list(filter events.ListFilter, keep func(events.RegistryEvent) bool) ([]events.RegistryEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]events.RegistryEvent, 0)
	for _, e := range r.items {
		if keep != nil && !keep(e) {
			continue
		}
		if !filter.Match(e) {
			continue
		}
		out = append(out, e)
	}

	// Orden cronológico por occurred_at; empates en orden de inserción.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})

	if limit := filter.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
