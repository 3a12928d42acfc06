package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository/memory"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/testfixtures"
)

// sessionStart is when fixture sessions start, one day after the clock.
var sessionStart = testfixtures.ReferenceTime().Add(24 * time.Hour)

const sessionLength = time.Hour

func testPolicy() Policy {
	return Policy{
		CancelCutoff:       2 * time.Hour,
		CheckInOpensBefore: 30 * time.Minute,
		LockTimeout:        2 * time.Second,
		RatingEditWindow:   48 * time.Hour,
	}
}

type notifierStub struct {
	mu     sync.Mutex
	events []queue.Event
}

func (n *notifierStub) Notify(ev queue.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *notifierStub) count(typ queue.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

var errInjected = errors.New("injected failure")

// faultyStore fails the next failUpdates booking updates.
type faultyStore struct {
	repository.Store

	mu          sync.Mutex
	failUpdates int
}

func (f *faultyStore) failNext(n int) {
	f.mu.Lock()
	f.failUpdates = n
	f.mu.Unlock()
}

func (f *faultyStore) take() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdates == 0 {
		return false
	}
	f.failUpdates--
	return true
}

func (f *faultyStore) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	return f.Store.Atomic(ctx, func(tx repository.Tx) error {
		return fn(&faultyTx{Tx: tx, s: f})
	})
}

type faultyTx struct {
	repository.Tx
	s *faultyStore
}

func (t *faultyTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	if t.s.take() {
		return errInjected
	}
	return t.Tx.UpdateBooking(ctx, b)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	mem      *memory.Store
	faulty   *faultyStore
	members  *memory.Directory
	wallets  *memory.Wallets
	clock    *testfixtures.Clock
	notifier *notifierStub
	ledger   *Ledger
	packages *PackageLedger
	catalog  *Catalog

	rooms int
}

func newFixture(t *testing.T, tweak ...func(*Policy)) *fixture {
	t.Helper()
	policy := testPolicy()
	for _, fn := range tweak {
		fn(&policy)
	}
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		mem:      memory.New(),
		members:  memory.NewDirectory(),
		wallets:  memory.NewWallets(),
		clock:    testfixtures.NewClock(time.Time{}),
		notifier: &notifierStub{},
	}
	f.faulty = &faultyStore{Store: f.mem}
	f.ledger = NewLedger(f.faulty, f.members, f.wallets, policy,
		WithNotifier(f.notifier), WithClock(f.clock.NowFunc()))
	f.packages = NewPackageLedger(f.faulty, f.clock.NowFunc())
	f.catalog = NewCatalog(f.faulty, f.clock.NowFunc())
	return f
}

func (f *fixture) member(id uint64) uint64 {
	f.t.Helper()
	if err := f.members.SaveMember(f.ctx, model.Member{ID: id, Status: model.MemberActive}); err != nil {
		f.t.Fatalf("save member: %v", err)
	}
	return id
}

func (f *fixture) entry(priceCents uint32) *model.CatalogEntry {
	f.t.Helper()
	e, err := f.catalog.Create(f.ctx, CatalogInput{
		Name:            "Spin",
		Category:        "cycling",
		Difficulty:      model.DifficultyIntermediate,
		DefaultDuration: sessionLength,
		BasePriceCents:  priceCents,
		Active:          true,
	})
	if err != nil {
		f.t.Fatalf("create catalog entry: %v", err)
	}
	return e
}

// session schedules a session at sessionStart in a room of its own.
func (f *fixture) session(capacity int, priceCents uint32) *model.Session {
	f.t.Helper()
	f.rooms++
	sess, err := f.ledger.CreateSession(f.ctx, SessionInput{
		CatalogID:    f.entry(priceCents).ID,
		InstructorID: 7,
		Room:         fmt.Sprintf("studio-%d", f.rooms),
		StartsAt:     sessionStart,
		Capacity:     capacity,
	})
	if err != nil {
		f.t.Fatalf("create session: %v", err)
	}
	return sess
}

// grant gives the member a package with the given number of credits.
func (f *fixture) grant(memberID uint64, credits int) *model.UserPackage {
	f.t.Helper()
	pkg, err := f.packages.CreatePackage(f.ctx, PackageInput{Name: "pack", Credits: credits, ValidityDays: 30})
	if err != nil {
		f.t.Fatalf("create package: %v", err)
	}
	up, err := f.packages.GrantPackage(f.ctx, memberID, pkg.ID)
	if err != nil {
		f.t.Fatalf("grant package: %v", err)
	}
	return up
}

func (f *fixture) book(sessionID, memberID uint64) *BookingResult {
	f.t.Helper()
	res, err := f.ledger.RequestBooking(f.ctx, BookingRequest{
		SessionID: sessionID,
		MemberID:  memberID,
		PayWith:   model.PayWithPackage,
	})
	if err != nil {
		f.t.Fatalf("book member %d: %v", memberID, err)
	}
	return res
}

// packageMember registers a member holding a package of credits.
func (f *fixture) packageMember(id uint64, credits int) (uint64, *model.UserPackage) {
	f.t.Helper()
	return f.member(id), f.grant(id, credits)
}

func (f *fixture) state(sessionID uint64) *SessionState {
	f.t.Helper()
	st, err := f.ledger.GetSessionState(f.ctx, sessionID)
	if err != nil {
		f.t.Fatalf("session state: %v", err)
	}
	return st
}

func (f *fixture) booking(id uint64) *model.Booking {
	f.t.Helper()
	b, err := f.ledger.GetBooking(f.ctx, id, 0)
	if err != nil {
		f.t.Fatalf("get booking %d: %v", id, err)
	}
	return b
}

func (f *fixture) userPackage(id uint64) *model.UserPackage {
	f.t.Helper()
	up, err := f.packages.GetUserPackage(f.ctx, id)
	if err != nil {
		f.t.Fatalf("get package %d: %v", id, err)
	}
	return up
}

func (f *fixture) expectCounters(sessionID uint64, confirmed, waitlisted int) {
	f.t.Helper()
	st := f.state(sessionID)
	if st.Session.ConfirmedCount != confirmed || st.Session.WaitlistCount != waitlisted {
		f.t.Fatalf("expected counters %d/%d, got %d/%d", confirmed, waitlisted,
			st.Session.ConfirmedCount, st.Session.WaitlistCount)
	}
}

func (f *fixture) expectState(bookingID uint64, want model.BookingState) {
	f.t.Helper()
	if got := f.booking(bookingID).State; got != want {
		f.t.Fatalf("booking %d: expected %s, got %s", bookingID, want, got)
	}
}
