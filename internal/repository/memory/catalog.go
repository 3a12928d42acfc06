package memory

import (
	"context"
	"sort"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func (t *tx) InsertCatalogEntry(_ context.Context, e *model.CatalogEntry) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID("catalog")
	e.RatingSum, e.RatingCount = 0, 0
	cp := *e
	s.catalog[e.ID] = &cp
	id := e.ID
	t.record(func() { delete(s.catalog, id) })
	return nil
}

func (t *tx) UpdateCatalogEntry(_ context.Context, e *model.CatalogEntry) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.catalog[e.ID]
	if !ok {
		return repository.ErrNotFound
	}
	prev := *cur
	cur.Name, cur.Category, cur.Difficulty = e.Name, e.Category, e.Difficulty
	cur.DefaultDuration, cur.BasePriceCents, cur.Active = e.DefaultDuration, e.BasePriceCents, e.Active
	cur.UpdatedAt = e.UpdatedAt
	t.record(func() {
		cur.Name, cur.Category, cur.Difficulty = prev.Name, prev.Category, prev.Difficulty
		cur.DefaultDuration, cur.BasePriceCents, cur.Active = prev.DefaultDuration, prev.BasePriceCents, prev.Active
		cur.UpdatedAt = prev.UpdatedAt
	})
	return nil
}

func (t *tx) GetCatalogEntry(_ context.Context, id uint64) (*model.CatalogEntry, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.catalog[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (t *tx) ListCatalogEntries(_ context.Context, activeOnly bool) ([]model.CatalogEntry, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CatalogEntry, 0, len(s.catalog))
	for _, e := range s.catalog {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) AddCatalogRating(_ context.Context, id uint64, sumDelta, countDelta int64) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.catalog[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.RatingSum += sumDelta
	e.RatingCount += countDelta
	t.record(func() {
		e.RatingSum -= sumDelta
		e.RatingCount -= countDelta
	})
	return nil
}
