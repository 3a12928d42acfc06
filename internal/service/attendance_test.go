package service

import (
	"errors"
	"testing"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

func TestLedger_CheckIn_ConsumesCredit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, upA := f.packageMember(1, 2)
	bookA := f.book(sess.ID, a)
	f.clock.Set(sessionStart.Add(-15 * time.Minute))

	b, err := f.ledger.CheckIn(f.ctx, bookA.Booking.ID)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}

	if b.State != model.BookingCheckedIn {
		t.Fatalf("expected checked_in, got %s", b.State)
	}
	got := f.userPackage(upA.ID)
	if got.CreditsConsumed != 1 || got.CreditsReserved != 0 || !got.Balanced() {
		t.Fatalf("expected consumed credit, got %+v", got)
	}
	// a checked-in member keeps the seat
	f.expectCounters(sess.ID, 1, 0)
}

func TestLedger_CheckIn_Window(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		at   time.Time
		ok   bool
	}{
		{name: "before doors open", at: sessionStart.Add(-31 * time.Minute)},
		{name: "doors open", at: sessionStart.Add(-30 * time.Minute), ok: true},
		{name: "during session", at: sessionStart.Add(sessionLength / 2), ok: true},
		{name: "at end", at: sessionStart.Add(sessionLength)},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			sess := f.session(1, 0)
			a, _ := f.packageMember(1, 1)
			bookA := f.book(sess.ID, a)
			f.clock.Set(tc.at)

			_, err := f.ledger.CheckIn(f.ctx, bookA.Booking.ID)

			if tc.ok && err != nil {
				t.Fatalf("expected check-in to succeed, got %v", err)
			}
			if !tc.ok && (!errors.Is(err, ErrInvalidCheckinWindow) || Kind(err) != "invalid_checkin_window") {
				t.Fatalf("expected invalid check-in window, got %v", err)
			}
		})
	}
}

func TestLedger_CheckIn_Twice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 0)
	a, _ := f.packageMember(1, 1)
	bookA := f.book(sess.ID, a)
	f.clock.Set(sessionStart)
	if _, err := f.ledger.CheckIn(f.ctx, bookA.Booking.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}

	_, err := f.ledger.CheckIn(f.ctx, bookA.Booking.ID)

	if !errors.Is(err, ErrAttendanceRecorded) || Kind(err) != "conflict" {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLedger_CheckIn_WaitlistedRefused(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 0)
	a, _ := f.packageMember(1, 1)
	b, _ := f.packageMember(2, 1)
	f.book(sess.ID, a)
	bookB := f.book(sess.ID, b)
	f.clock.Set(sessionStart)

	_, err := f.ledger.CheckIn(f.ctx, bookB.Booking.ID)

	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestLedger_SweepNoShows_MarksAbsentees(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, _ := f.packageMember(1, 1)
	b, upB := f.packageMember(2, 1)
	c, upC := f.packageMember(3, 1)
	bookA := f.book(sess.ID, a)
	bookB := f.book(sess.ID, b)
	bookC := f.book(sess.ID, c)

	f.clock.Set(sessionStart)
	if _, err := f.ledger.CheckIn(f.ctx, bookA.Booking.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}

	f.clock.Set(sessionStart.Add(-time.Hour))
	if _, err := f.ledger.SweepNoShows(f.ctx, sess.ID); Kind(err) != "conflict" {
		t.Fatalf("expected sweep before the end to be refused, got %v", err)
	}

	f.clock.Set(sessionStart.Add(sessionLength + time.Minute))
	res, err := f.ledger.SweepNoShows(f.ctx, sess.ID)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if res.NoShows != 1 || res.WaitlistCancelled != 1 {
		t.Fatalf("expected one no-show and one closed waitlist entry, got %+v", res)
	}
	f.expectState(bookA.Booking.ID, model.BookingCheckedIn)
	f.expectState(bookB.Booking.ID, model.BookingNoShow)
	f.expectState(bookC.Booking.ID, model.BookingCancelled)
	if got := f.userPackage(upB.ID); got.CreditsConsumed != 1 || !got.Balanced() {
		t.Fatalf("expected no-show to consume the credit, got %+v", got)
	}
	if got := f.userPackage(upC.ID); got.CreditsRemaining != 1 {
		t.Fatalf("expected waitlisted member's credit untouched, got %+v", got)
	}
	st := f.state(sess.ID)
	if st.Session.Status != model.SessionCompleted {
		t.Fatalf("expected completed session, got %s", st.Session.Status)
	}
	f.expectCounters(sess.ID, 2, 0)

	_, err = f.ledger.CheckIn(f.ctx, bookB.Booking.ID)
	if Kind(err) != "conflict" {
		t.Fatalf("expected check-in after no-show to conflict, got %v", err)
	}

	again, err := f.ledger.SweepNoShows(f.ctx, sess.ID)
	if err != nil || again.NoShows != 0 {
		t.Fatalf("expected repeated sweep to change nothing, got %+v (%v)", again, err)
	}
}

func TestLedger_CreditConservation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	member, up := f.packageMember(1, 3)
	s1 := f.session(1, 0)
	s2 := f.session(1, 0)
	s3 := f.session(1, 0)

	check := func(step string) {
		t.Helper()
		got := f.userPackage(up.ID)
		if !got.Balanced() || got.CreditsTotal != 3 {
			t.Fatalf("%s: credits out of balance %+v", step, got)
		}
	}

	b1 := f.book(s1.ID, member)
	check("book 1")
	b2 := f.book(s2.ID, member)
	check("book 2")
	if _, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: b1.Booking.ID}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	check("cancel 1")
	f.book(s3.ID, member)
	check("book 3")
	f.clock.Set(sessionStart)
	if _, err := f.ledger.CheckIn(f.ctx, b2.Booking.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	check("check in 2")
	f.clock.Set(sessionStart.Add(2 * sessionLength))
	if _, err := f.ledger.AdvanceSessions(f.ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	check("advance")

	got := f.userPackage(up.ID)
	if got.CreditsConsumed != 2 || got.CreditsRemaining != 1 || got.CreditsReserved != 0 {
		t.Fatalf("expected 2 consumed and 1 remaining, got %+v", got)
	}
}
