// Package memory keeps the scheduling data in process memory.  It backs
// the development mode of the server and the service tests.
//
// Writers of the same session, or of the same member package, are
// serialised by per-entity locks held until the unit of work ends, the
// same way row locks behave in the SQL store.  Writes are applied in
// place and undone on rollback.  Session rows are read committed: other
// units of work see a written session's previous version until the
// writer ends.  Other rows may be observed uncommitted by units of work
// that do not lock them.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

type lockKind int

const (
	sessionLock lockKind = iota
	packageLock
)

type lockKey struct {
	kind lockKind
	id   uint64
}

// pendingSession is a session row written by an unfinished unit of work.
// before is nil for a row that unit inserted.
type pendingSession struct {
	owner  *tx
	before *model.Session
}

// Store is an in-memory repository.Store.
type Store struct {
	mu sync.RWMutex

	catalog      map[uint64]*model.CatalogEntry
	sessions     map[uint64]*model.Session
	bookings     map[uint64]*model.Booking
	bySession    map[uint64][]uint64
	packages     map[uint64]*model.Package
	userPackages map[uint64]*model.UserPackage
	holds        map[uint64]*model.CreditHold
	attendance   map[uint64]*model.Attendance
	ratings      map[uint64]*model.Rating

	pending map[uint64]pendingSession

	lastID map[string]uint64

	lockMu sync.Mutex
	locks  map[lockKey]chan struct{}
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		catalog:      map[uint64]*model.CatalogEntry{},
		sessions:     map[uint64]*model.Session{},
		bookings:     map[uint64]*model.Booking{},
		bySession:    map[uint64][]uint64{},
		packages:     map[uint64]*model.Package{},
		userPackages: map[uint64]*model.UserPackage{},
		holds:        map[uint64]*model.CreditHold{},
		attendance:   map[uint64]*model.Attendance{},
		ratings:      map[uint64]*model.Rating{},
		pending:      map[uint64]pendingSession{},
		lastID:       map[string]uint64{},
		locks:        map[lockKey]chan struct{}{},
	}
}

// Atomic runs fn as one unit of work.  Every write made through the Tx is
// undone when fn fails, panics, or ctx is done before fn returns.
func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	t := &tx{s: s, held: map[lockKey]chan struct{}{}}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
		t.settle()
		t.unlockAll()
	}()

	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) nextID(table string) uint64 {
	s.lastID[table]++
	return s.lastID[table]
}

func (s *Store) lockChan(k lockKey) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[k]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[k] = ch
	}
	return ch
}

// tx implements repository.Tx.  Its methods live in the per-entity files
// of this package.
type tx struct {
	s       *Store
	held    map[lockKey]chan struct{}
	undo    []func()
	touched []uint64
}

// lock takes the entity lock, waiting at most until ctx is done.  A
// deadline while waiting is reported as repository.ErrBusy.  Locks are
// re-entrant within a unit of work.
func (t *tx) lock(ctx context.Context, k lockKey) error {
	if _, ok := t.held[k]; ok {
		return nil
	}
	ch := t.s.lockChan(k)
	select {
	case ch <- struct{}{}:
		t.held[k] = ch
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return repository.ErrBusy
		}
		return ctx.Err()
	}
}

func (t *tx) unlockAll() {
	for k, ch := range t.held {
		<-ch
		delete(t.held, k)
	}
}

// record registers an undo step.  Callers hold s.mu.
func (t *tx) record(fn func()) { t.undo = append(t.undo, fn) }

func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// settle publishes the session rows this unit of work wrote.
func (t *tx) settle() {
	if len(t.touched) == 0 {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, id := range t.touched {
		if p, ok := t.s.pending[id]; ok && p.owner == t {
			delete(t.s.pending, id)
		}
	}
	t.touched = nil
}

func matchState[S ~string](s S, states []S) bool {
	if len(states) == 0 {
		return true
	}
	for _, want := range states {
		if s == want {
			return true
		}
	}
	return false
}

func sortBySequence(bs []model.Booking) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].Sequence < bs[j].Sequence })
}
