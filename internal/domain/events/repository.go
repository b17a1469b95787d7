package events

import (
	"context"
	"errors"
	"time"

	"pettrace/internal/domain/reports"
)

var ErrNotFound = errors.New("event not found")

// Repository es append-only: no hay update ni delete.
type Repository interface {
	Create(ctx context.Context, e RegistryEvent) error
	GetByID(ctx context.Context, id string) (RegistryEvent, error)
	ListByReport(ctx context.Context, reportID uint64, filter ListFilter) ([]RegistryEvent, error)
	List(ctx context.Context, filter ListFilter) ([]RegistryEvent, error)
}

// ListFilter: orden cronológico (occurred_at asc). Limit <= 0 => 50.
type ListFilter struct {
	Types []reports.EventType
	From  *time.Time
	To    *time.Time
	Limit int
}

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Match aplica tipos y rango de fechas. Lo usan los repos sin query nativa.
func (f ListFilter) Match(e RegistryEvent) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if e.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredAt.After(*f.To) {
		return false
	}
	return true
}

func (f ListFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultLimit
	case f.Limit > MaxLimit:
		return MaxLimit
	default:
		return f.Limit
	}
}
