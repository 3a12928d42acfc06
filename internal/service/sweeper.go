package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Locker grants a named lock shared by every instance of the service.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Sweeper periodically advances session statuses and reconciles counters.
type Sweeper struct {
	ledger    *Ledger
	locker    Locker
	interval  time.Duration
	reconcile time.Duration
	logger    *slog.Logger

	wg sync.WaitGroup
}

// NewSweeper builds a Sweeper.  A nil locker runs every tick locally;
// a zero reconcile interval disables reconciliation.
func NewSweeper(ledger *Ledger, locker Locker, interval, reconcile time.Duration, logger *slog.Logger) *Sweeper {
	if ledger == nil {
		panic("service: NewSweeper requires a ledger")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		ledger:    ledger,
		locker:    locker,
		interval:  interval,
		reconcile: reconcile,
		logger:    defaultLogger(logger).With("component", "sweeper"),
	}
}

// Start runs the sweep loop until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tick := time.NewTicker(s.interval)
		defer tick.Stop()
		lastReconcile := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-tick.C:
				withReconcile := s.reconcile > 0 && now.Sub(lastReconcile) >= s.reconcile
				if s.RunOnce(ctx, withReconcile) && withReconcile {
					lastReconcile = now
				}
			}
		}
	}()
}

// Wait blocks until the loop started by Start has returned.
func (s *Sweeper) Wait() { s.wg.Wait() }

// RunOnce performs one sweep and reports whether this instance held the
// sweep lock.
func (s *Sweeper) RunOnce(ctx context.Context, withReconcile bool) bool {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, "session-sweep", 2*s.interval)
		if err != nil {
			s.logger.Warn("sweep lock unavailable", "error", err)
			return false
		}
		if !ok {
			return false
		}
		defer release()
	}

	if _, err := s.ledger.AdvanceSessions(ctx); err != nil {
		s.logger.Warn("advance sessions incomplete", "error", err, "error_kind", Kind(err))
	}
	if withReconcile {
		drifted, err := s.ledger.ReconcileOpen(ctx)
		if err != nil {
			s.logger.Error("reconciliation failed", "error", err, "error_kind", Kind(err))
		}
		if len(drifted) > 0 {
			s.logger.Warn("session counters repaired", "sessions", len(drifted))
		}
	}
	return true
}
