package memory

import (
	"context"
	"sort"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func (t *tx) InsertSession(_ context.Context, ss *model.Session) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss.ID = s.nextID("sessions")
	ss.ConfirmedCount, ss.WaitlistCount, ss.NextSequence = 0, 0, 0
	ss.RatingSum, ss.RatingCount = 0, 0
	cp := *ss
	s.sessions[ss.ID] = &cp
	id := ss.ID
	s.pending[id] = pendingSession{owner: t}
	t.touched = append(t.touched, id)
	t.record(func() { delete(s.sessions, id) })
	return nil
}

func (t *tx) GetSession(_ context.Context, id uint64) (*model.Session, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	ss, ok := t.visible(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ss
	return &cp, nil
}

// visible returns the session row as this unit of work may see it: its
// own writes, or else the last committed version.  Callers hold s.mu.
func (t *tx) visible(id uint64) (*model.Session, bool) {
	if p, ok := t.s.pending[id]; ok && p.owner != t {
		return p.before, p.before != nil
	}
	ss, ok := t.s.sessions[id]
	return ss, ok
}

func (t *tx) LockSession(ctx context.Context, id uint64) (*model.Session, error) {
	if _, err := t.GetSession(ctx, id); err != nil {
		return nil, err
	}
	if err := t.lock(ctx, lockKey{sessionLock, id}); err != nil {
		return nil, err
	}
	// re-read after the wait so the caller sees the previous holder's writes
	return t.GetSession(ctx, id)
}

func (t *tx) ListSessions(_ context.Context, f repository.SessionFilter) ([]model.Session, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for id := range s.sessions {
		ss, ok := t.visible(id)
		if !ok {
			continue
		}
		if !matchState(ss.Status, f.Statuses) {
			continue
		}
		if f.CatalogID != 0 && ss.CatalogID != f.CatalogID {
			continue
		}
		if f.Room != "" && ss.Room != f.Room {
			continue
		}
		if !f.StartsFrom.IsZero() && ss.StartsAt.Before(f.StartsFrom) {
			continue
		}
		if !f.StartsBy.IsZero() && ss.StartsAt.After(f.StartsBy) {
			continue
		}
		if !f.StartsBefore.IsZero() && !ss.StartsAt.Before(f.StartsBefore) {
			continue
		}
		if !f.EndsAfter.IsZero() && !ss.EndsAt().After(f.EndsAfter) {
			continue
		}
		out = append(out, *ss)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// session returns the live row for writing and keeps its committed
// version visible to other units of work until this one ends.  Callers
// hold s.mu.
func (t *tx) session(id uint64) (*model.Session, error) {
	ss, ok := t.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if _, ok := t.s.pending[id]; !ok {
		before := *ss
		t.s.pending[id] = pendingSession{owner: t, before: &before}
		t.touched = append(t.touched, id)
	}
	return ss, nil
}

func (t *tx) ReserveSeat(_ context.Context, id uint64) (bool, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return false, err
	}
	if ss.ConfirmedCount >= ss.Capacity {
		return false, nil
	}
	ss.ConfirmedCount++
	t.record(func() { ss.ConfirmedCount-- })
	return true, nil
}

func (t *tx) ReleaseSeat(_ context.Context, id uint64) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return err
	}
	if ss.ConfirmedCount > 0 {
		ss.ConfirmedCount--
		t.record(func() { ss.ConfirmedCount++ })
	}
	return nil
}

func (t *tx) AdjustWaitlist(_ context.Context, id uint64, delta int) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return err
	}
	prev := ss.WaitlistCount
	ss.WaitlistCount += delta
	if ss.WaitlistCount < 0 {
		ss.WaitlistCount = 0
	}
	t.record(func() { ss.WaitlistCount = prev })
	return nil
}

func (t *tx) NextSequence(_ context.Context, id uint64) (uint64, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return 0, err
	}
	ss.NextSequence++
	t.record(func() { ss.NextSequence-- })
	return ss.NextSequence, nil
}

func (t *tx) UpdateSessionStatus(_ context.Context, id uint64, status model.SessionStatus, reason string) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return err
	}
	prevStatus, prevReason := ss.Status, ss.CancelReason
	ss.Status, ss.CancelReason = status, reason
	t.record(func() { ss.Status, ss.CancelReason = prevStatus, prevReason })
	return nil
}

func (t *tx) UpdateSessionCapacity(_ context.Context, id uint64, capacity int) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return err
	}
	if ss.ConfirmedCount > capacity {
		return repository.ErrConflict
	}
	prev := ss.Capacity
	ss.Capacity = capacity
	t.record(func() { ss.Capacity = prev })
	return nil
}

func (t *tx) SetSessionCounters(_ context.Context, id uint64, confirmed, waitlisted int) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return err
	}
	pc, pw := ss.ConfirmedCount, ss.WaitlistCount
	ss.ConfirmedCount, ss.WaitlistCount = confirmed, waitlisted
	t.record(func() { ss.ConfirmedCount, ss.WaitlistCount = pc, pw })
	return nil
}

func (t *tx) AddSessionRating(_ context.Context, id uint64, sumDelta, countDelta int64) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, err := t.session(id)
	if err != nil {
		return err
	}
	ss.RatingSum += sumDelta
	ss.RatingCount += countDelta
	t.record(func() {
		ss.RatingSum -= sumDelta
		ss.RatingCount -= countDelta
	})
	return nil
}
