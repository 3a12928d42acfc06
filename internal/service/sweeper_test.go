package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

type lockerStub struct {
	ok       bool
	err      error
	calls    int
	released int
}

func (l *lockerStub) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	l.calls++
	if l.err != nil || !l.ok {
		return func() {}, false, l.err
	}
	return func() { l.released++ }, true, nil
}

func TestSweeper_RunOnce_SkipsWithoutLock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 0)
	f.clock.Set(sessionStart.Add(time.Minute))

	for _, locker := range []*lockerStub{{ok: false}, {err: errors.New("redis down")}} {
		s := NewSweeper(f.ledger, locker, time.Second, 0, nil)
		if s.RunOnce(f.ctx, false) {
			t.Fatalf("expected sweep to be skipped")
		}
	}
	if got := f.state(sess.ID).Session.Status; got != model.SessionScheduled {
		t.Fatalf("expected stored status untouched, got %s", got)
	}
}

func TestSweeper_RunOnce_AdvancesAndReconciles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, _ := f.packageMember(1, 1)
	f.book(sess.ID, a)
	f.clock.Set(sessionStart.Add(time.Minute))
	locker := &lockerStub{ok: true}
	s := NewSweeper(f.ledger, locker, time.Second, time.Minute, nil)

	if !s.RunOnce(f.ctx, true) {
		t.Fatalf("expected sweep to run")
	}

	if locker.released != 1 {
		t.Fatalf("expected the lock to be released once, got %d", locker.released)
	}
	if got := f.state(sess.ID).Session.Status; got != model.SessionInProgress {
		t.Fatalf("expected in_progress, got %s", got)
	}
}

func TestSweeper_StartStopsWithContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := NewSweeper(f.ledger, nil, 10*time.Millisecond, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
