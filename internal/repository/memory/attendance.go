package memory

import (
	"context"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func (t *tx) InsertAttendance(_ context.Context, a *model.Attendance) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attendance[a.BookingID]; ok {
		return repository.ErrConflict
	}
	cp := *a
	s.attendance[a.BookingID] = &cp
	id := a.BookingID
	t.record(func() { delete(s.attendance, id) })
	return nil
}

func (t *tx) GetAttendance(_ context.Context, bookingID uint64) (*model.Attendance, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attendance[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}
