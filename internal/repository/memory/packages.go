package memory

import (
	"context"
	"sort"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func (t *tx) InsertPackage(_ context.Context, p *model.Package) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID("packages")
	cp := *p
	s.packages[p.ID] = &cp
	id := p.ID
	t.record(func() { delete(s.packages, id) })
	return nil
}

func (t *tx) GetPackage(_ context.Context, id uint64) (*model.Package, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *tx) ListPackages(_ context.Context) ([]model.Package, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Package, 0, len(s.packages))
	for _, p := range s.packages {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) InsertUserPackage(_ context.Context, up *model.UserPackage) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	up.ID = s.nextID("user_packages")
	cp := *up
	s.userPackages[up.ID] = &cp
	id := up.ID
	t.record(func() { delete(s.userPackages, id) })
	return nil
}

func (t *tx) GetUserPackage(_ context.Context, id uint64) (*model.UserPackage, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.userPackages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *up
	return &cp, nil
}

func (t *tx) LockUserPackage(ctx context.Context, id uint64) (*model.UserPackage, error) {
	if _, err := t.GetUserPackage(ctx, id); err != nil {
		return nil, err
	}
	if err := t.lock(ctx, lockKey{packageLock, id}); err != nil {
		return nil, err
	}
	return t.GetUserPackage(ctx, id)
}

func (t *tx) UpdateUserPackageCredits(_ context.Context, up *model.UserPackage) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.userPackages[up.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if up.CreditsRemaining < 0 {
		return repository.ErrConflict
	}
	prev := *cur
	cur.CreditsRemaining = up.CreditsRemaining
	cur.CreditsReserved = up.CreditsReserved
	cur.CreditsConsumed = up.CreditsConsumed
	t.record(func() { *cur = prev })
	return nil
}

func (t *tx) ListUserPackages(_ context.Context, memberID uint64) ([]model.UserPackage, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.UserPackage
	for _, up := range s.userPackages {
		if up.MemberID == memberID {
			out = append(out, *up)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) GetCreditHold(_ context.Context, bookingID uint64) (*model.CreditHold, error) {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[bookingID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (t *tx) SaveCreditHold(_ context.Context, h *model.CreditHold) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.holds[h.BookingID]
	cp := *h
	s.holds[h.BookingID] = &cp
	id := h.BookingID
	t.record(func() {
		if existed {
			s.holds[id] = prev
		} else {
			delete(s.holds, id)
		}
	})
	return nil
}
