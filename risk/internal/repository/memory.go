package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/self-labs/hass-stack/risk/internal/models"
)

// MemoryRepository is an in-memory Repository for tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	positions map[string]models.Position
	verdicts  []models.Verdict
	snapshot  *models.PortfolioState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{positions: map[string]models.Position{}}
}

func (r *MemoryRepository) UpsertPosition(_ context.Context, p *models.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[p.Symbol] = *p
	return nil
}

func (r *MemoryRepository) GetPosition(_ context.Context, symbol string) (*models.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[symbol]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) ListPositions(_ context.Context) ([]*models.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Position, 0, len(r.positions))
	for _, p := range r.positions {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *MemoryRepository) DeletePosition(_ context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[symbol]; !ok {
		return ErrPositionNotFound
	}
	delete(r.positions, symbol)
	return nil
}

func (r *MemoryRepository) RecordVerdict(_ context.Context, v *models.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts = append(r.verdicts, *v)
	return nil
}

func (r *MemoryRepository) ListVerdicts(_ context.Context, symbol string, limit int) ([]*models.Verdict, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	out := []*models.Verdict{}
	for i := len(r.verdicts) - 1; i >= 0 && len(out) < limit; i-- {
		if symbol != "" && r.verdicts[i].Symbol != symbol {
			continue
		}
		v := r.verdicts[i]
		out = append(out, &v)
	}
	return out, nil
}

func (r *MemoryRepository) SaveSnapshot(_ context.Context, s *models.PortfolioState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.snapshot = &copied
	return nil
}

func (r *MemoryRepository) LatestSnapshot(_ context.Context) (*models.PortfolioState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := models.PortfolioState{Positions: map[string]models.Position{}}
	if r.snapshot != nil {
		s.TotalValue = r.snapshot.TotalValue
		s.Cash = r.snapshot.Cash
		s.MarginUsed = r.snapshot.MarginUsed
		s.MarginAvailable = r.snapshot.MarginAvailable
	}
	for k, v := range r.positions {
		s.Positions[k] = v
	}
	return &s, nil
}

func (r *MemoryRepository) Close() error { return nil }
