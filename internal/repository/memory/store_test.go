package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func seed(t *testing.T, s *Store, capacity int) uint64 {
	t.Helper()
	var id uint64
	err := s.Atomic(context.Background(), func(tx repository.Tx) error {
		ss := &model.Session{Room: "studio", Capacity: capacity, Duration: time.Hour, Status: model.SessionScheduled}
		if err := tx.InsertSession(context.Background(), ss); err != nil {
			return err
		}
		id = ss.ID
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func TestStore_Atomic_RollsBackEveryWrite(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	id := seed(t, s, 3)
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(tx repository.Tx) error {
		if _, err := tx.ReserveSeat(ctx, id); err != nil {
			return err
		}
		seq, err := tx.NextSequence(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, &model.Booking{SessionID: id, MemberID: 1, State: model.BookingConfirmed, Sequence: seq}); err != nil {
			return err
		}
		if err := tx.UpdateSessionStatus(ctx, id, model.SessionCancelling, "x"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = s.Atomic(ctx, func(tx repository.Tx) error {
		ss, err := tx.GetSession(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ss.ConfirmedCount != 0 || ss.NextSequence != 0 || ss.Status != model.SessionScheduled {
			t.Fatalf("expected untouched session, got %+v", ss)
		}
		bs, _ := tx.ListSessionBookings(ctx, id)
		if len(bs) != 0 {
			t.Fatalf("expected no bookings, got %d", len(bs))
		}
		return nil
	})
}

func TestStore_Atomic_CancelledContextRollsBack(t *testing.T) {
	t.Parallel()
	s := New()
	id := seed(t, s, 1)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Atomic(ctx, func(tx repository.Tx) error {
		_, err := tx.ReserveSeat(ctx, id)
		cancel()
		return err
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	_ = s.Atomic(context.Background(), func(tx repository.Tx) error {
		ss, _ := tx.GetSession(context.Background(), id)
		if ss.ConfirmedCount != 0 {
			t.Fatalf("expected the seat to be released, got %d", ss.ConfirmedCount)
		}
		return nil
	})
}

func TestStore_LockSession_SerialisesWriters(t *testing.T) {
	t.Parallel()
	s := New()
	id := seed(t, s, 1)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Atomic(ctx, func(tx repository.Tx) error {
			if _, err := tx.LockSession(ctx, id); err != nil {
				return err
			}
			// re-entrant
			if _, err := tx.LockSession(ctx, id); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := s.Atomic(waitCtx, func(tx repository.Tx) error {
		_, err := tx.LockSession(waitCtx, id)
		return err
	})
	if !errors.Is(err, repository.ErrBusy) {
		t.Fatalf("expected ErrBusy while the lock is held, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("holder: %v", err)
	}
	err = s.Atomic(ctx, func(tx repository.Tx) error {
		_, err := tx.LockSession(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("expected the lock to be free, got %v", err)
	}
}

func TestStore_UniqueConstraints(t *testing.T) {
	t.Parallel()
	s := New()
	id := seed(t, s, 1)
	ctx := context.Background()

	err := s.Atomic(ctx, func(tx repository.Tx) error {
		if err := tx.InsertBooking(ctx, &model.Booking{SessionID: id, MemberID: 1, Sequence: 1}); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, &model.Booking{SessionID: id, MemberID: 2, Sequence: 1}); !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("expected sequence conflict, got %v", err)
		}
		if err := tx.InsertRating(ctx, &model.Rating{SessionID: id, MemberID: 1, Score: 5}); err != nil {
			return err
		}
		if err := tx.InsertRating(ctx, &model.Rating{SessionID: id, MemberID: 1, Score: 3}); !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("expected rating conflict, got %v", err)
		}
		a := &model.Attendance{BookingID: 1, SessionID: id, MemberID: 1, Outcome: model.BookingNoShow}
		if err := tx.InsertAttendance(ctx, a); err != nil {
			return err
		}
		if err := tx.InsertAttendance(ctx, a); !errors.Is(err, repository.ErrConflict) {
			t.Fatalf("expected attendance conflict, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unit of work: %v", err)
	}
}

func TestStore_ReserveSeat_NeverExceedsCapacity(t *testing.T) {
	t.Parallel()
	s := New()
	id := seed(t, s, 2)
	ctx := context.Background()

	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_ = s.Atomic(ctx, func(tx repository.Tx) error {
				ok, err := tx.ReserveSeat(ctx, id)
				results <- ok
				return err
			})
		}()
	}
	admitted := 0
	for i := 0; i < 10; i++ {
		if <-results {
			admitted++
		}
	}
	if admitted != 2 {
		t.Fatalf("expected 2 admissions, got %d", admitted)
	}
}

func TestWallets_ChargeAndRefund(t *testing.T) {
	t.Parallel()
	w := NewWallets()
	ctx := context.Background()
	_ = w.TopUp(ctx, 7, 1000)

	ref, err := w.ChargeDropinFee(ctx, 7, 700, "k")
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if again, _ := w.ChargeDropinFee(ctx, 7, 700, "k"); again != ref {
		t.Fatalf("expected idempotent charge, got %q and %q", ref, again)
	}
	if _, err := w.ChargeDropinFee(ctx, 7, 700, "k2"); !errors.Is(err, repository.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	_ = w.RefundDropinFee(ctx, ref)
	_ = w.RefundDropinFee(ctx, ref)
	if bal, _ := w.Balance(ctx, 7); bal != 1000 {
		t.Fatalf("expected balance restored once, got %d", bal)
	}
	if err := w.RefundDropinFee(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_SessionReadsAreCommitted(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	id := seed(t, s, 2)

	observe := func() (confirmed int, listed int) {
		t.Helper()
		_ = s.Atomic(ctx, func(tx repository.Tx) error {
			ss, err := tx.GetSession(ctx, id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			all, err := tx.ListSessions(ctx, repository.SessionFilter{})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			for _, l := range all {
				if l.ID == id && l.ConfirmedCount != ss.ConfirmedCount {
					t.Fatalf("list and get disagree: %d vs %d", l.ConfirmedCount, ss.ConfirmedCount)
				}
			}
			confirmed, listed = ss.ConfirmedCount, len(all)
			return nil
		})
		return confirmed, listed
	}

	written := make(chan struct{})
	finish := make(chan error)
	done := make(chan error, 1)
	go func() {
		done <- s.Atomic(ctx, func(tx repository.Tx) error {
			if _, err := tx.LockSession(ctx, id); err != nil {
				return err
			}
			if _, err := tx.ReserveSeat(ctx, id); err != nil {
				return err
			}
			if err := tx.InsertSession(ctx, &model.Session{Room: "annex", Capacity: 1, Duration: time.Hour, Status: model.SessionScheduled}); err != nil {
				return err
			}
			ss, err := tx.GetSession(ctx, id)
			if err != nil || ss.ConfirmedCount != 1 {
				t.Errorf("writer should see its own seat, got %+v %v", ss, err)
			}
			close(written)
			return <-finish
		})
	}()
	<-written

	if confirmed, listed := observe(); confirmed != 0 || listed != 1 {
		t.Fatalf("uncommitted writes leaked: confirmed=%d listed=%d", confirmed, listed)
	}
	boom := errors.New("declined")
	finish <- boom
	if err := <-done; !errors.Is(err, boom) {
		t.Fatalf("expected writer to fail, got %v", err)
	}
	if confirmed, listed := observe(); confirmed != 0 || listed != 1 {
		t.Fatalf("rolled back writes visible: confirmed=%d listed=%d", confirmed, listed)
	}

	err := s.Atomic(ctx, func(tx repository.Tx) error {
		_, err := tx.ReserveSeat(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if confirmed, _ := observe(); confirmed != 1 {
		t.Fatalf("expected committed seat, got %d", confirmed)
	}
}
