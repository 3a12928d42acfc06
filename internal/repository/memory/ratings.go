package memory

import (
	"context"
	"sort"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func (t *tx) GetRating(_ context.Context, sessionID, memberID uint64) (*model.Rating, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ratings {
		if r.SessionID == sessionID && r.MemberID == memberID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *tx) InsertRating(_ context.Context, r *model.Rating) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.ratings {
		if cur.SessionID == r.SessionID && cur.MemberID == r.MemberID {
			return repository.ErrConflict
		}
	}
	r.ID = s.nextID("ratings")
	cp := *r
	s.ratings[r.ID] = &cp
	id := r.ID
	t.record(func() { delete(s.ratings, id) })
	return nil
}

func (t *tx) UpdateRating(_ context.Context, r *model.Rating) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.ratings[r.ID]
	if !ok {
		return repository.ErrNotFound
	}
	prev := *cur
	cur.Score, cur.Comment, cur.UpdatedAt = r.Score, r.Comment, r.UpdatedAt
	t.record(func() { *cur = prev })
	return nil
}

func (t *tx) ListSessionRatings(_ context.Context, sessionID uint64) ([]model.Rating, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Rating
	for _, r := range s.ratings {
		if r.SessionID == sessionID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
