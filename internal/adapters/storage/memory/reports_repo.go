package memory

import (
	"context"
	"sync"

	"pettrace/internal/domain/reports"
)

// reportRepo es un slice indexado por id: ids secuenciales desde 0, append-only.
type reportRepo struct {
	mu    sync.RWMutex
	items []reports.PetReport
}

func NewReportRepo() reports.Repository {
	return &reportRepo{
		items: make([]reports.PetReport, 0),
	}
}

func (r *reportRepo) Append(ctx context.Context, p reports.PetReport) (reports.PetReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = uint64(len(r.items))
	r.items = append(r.items, p.Clone())
	return p.Clone(), nil
}

func (r *reportRepo) Update(ctx context.Context, p reports.PetReport, expectedVersion uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID >= uint64(len(r.items)) {
		return reports.ErrNotFound
	}
	if r.items[p.ID].Version != expectedVersion {
		return reports.ErrConflict
	}
	r.items[p.ID] = p.Clone()
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id uint64) (reports.PetReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id >= uint64(len(r.items)) {
		return reports.PetReport{}, reports.ErrNotFound
	}
	return r.items[id].Clone(), nil
}

func (r *reportRepo) List(ctx context.Context, page reports.Page) ([]reports.PetReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]reports.PetReport, 0)
	if page.Offset < 0 || page.Offset >= len(r.items) {
		return out, nil
	}

	end := len(r.items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	for _, p := range r.items[page.Offset:end] {
		out = append(out, p.Clone())
	}
	return out, nil
}
