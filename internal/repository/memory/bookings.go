package memory

import (
	"context"
	"sort"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func (t *tx) InsertBooking(_ context.Context, b *model.Booking) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.bySession[b.SessionID] {
		if s.bookings[id].Sequence == b.Sequence {
			return repository.ErrConflict
		}
	}
	b.ID = s.nextID("bookings")
	cp := *b
	s.bookings[b.ID] = &cp
	prev := s.bySession[b.SessionID]
	s.bySession[b.SessionID] = append(prev[:len(prev):len(prev)], b.ID)
	id, sessionID := b.ID, b.SessionID
	t.record(func() {
		delete(s.bookings, id)
		s.bySession[sessionID] = prev
	})
	return nil
}

func (t *tx) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *tx) UpdateBooking(_ context.Context, b *model.Booking) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	prev := *cur
	cur.State = b.State
	cur.UserPackageID = b.UserPackageID
	cur.ChargeRef = b.ChargeRef
	cur.CancelReason = b.CancelReason
	cur.RefundRequested = b.RefundRequested
	cur.UpdatedAt = b.UpdatedAt
	cur.CancelledAt = b.CancelledAt
	t.record(func() { *cur = prev })
	return nil
}

func (t *tx) ListSessionBookings(_ context.Context, sessionID uint64, states ...model.BookingState) ([]model.Booking, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, id := range s.bySession[sessionID] {
		b := s.bookings[id]
		if matchState(b.State, states) {
			out = append(out, *b)
		}
	}
	sortBySequence(out)
	return out, nil
}

func (t *tx) FindMemberBooking(_ context.Context, sessionID, memberID uint64, states ...model.BookingState) (*model.Booking, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.Booking
	for _, id := range s.bySession[sessionID] {
		b := s.bookings[id]
		if b.MemberID != memberID || !matchState(b.State, states) {
			continue
		}
		if found == nil || b.Sequence > found.Sequence {
			found = b
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (t *tx) ListMemberBookings(_ context.Context, memberID uint64) ([]model.Booking, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.MemberID == memberID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
