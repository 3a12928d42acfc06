package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// Directory is an in-memory member directory.
type Directory struct {
	mu      sync.RWMutex
	members map[uint64]model.Member
}

func NewDirectory() *Directory { return &Directory{members: map[uint64]model.Member{}} }

func (d *Directory) GetMember(_ context.Context, id uint64) (*model.Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (d *Directory) SaveMember(_ context.Context, m model.Member) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
	return nil
}

type charge struct {
	memberID uint64
	amount   int64
	refunded bool
}

// Wallets is an in-memory drop-in fee wallet with the same idempotency
// rules as repository.WalletRepo.
type Wallets struct {
	mu       sync.Mutex
	balances map[uint64]int64
	charges  map[string]*charge
	byKey    map[string]string
}

func NewWallets() *Wallets {
	return &Wallets{
		balances: map[uint64]int64{},
		charges:  map[string]*charge{},
		byKey:    map[string]string{},
	}
}

func (w *Wallets) ChargeDropinFee(_ context.Context, memberID uint64, amountCents uint32, key string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ref, ok := w.byKey[key]; ok {
		return ref, nil
	}
	if w.balances[memberID] < int64(amountCents) {
		return "", repository.ErrInsufficientFunds
	}
	w.balances[memberID] -= int64(amountCents)
	ref := uuid.NewString()
	w.charges[ref] = &charge{memberID: memberID, amount: int64(amountCents)}
	w.byKey[key] = ref
	return ref, nil
}

func (w *Wallets) RefundDropinFee(_ context.Context, ref string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.charges[ref]
	if !ok {
		return repository.ErrNotFound
	}
	if c.refunded {
		return nil
	}
	c.refunded = true
	w.balances[c.memberID] += c.amount
	return nil
}

func (w *Wallets) TopUp(_ context.Context, memberID uint64, amountCents int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[memberID] += amountCents
	return nil
}

func (w *Wallets) Balance(_ context.Context, memberID uint64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[memberID], nil
}
