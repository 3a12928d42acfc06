package service

import (
	"errors"
	"testing"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

func TestLedger_CreateSession_SnapshotsCatalog(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entry := f.entry(1200)

	sess, err := f.ledger.CreateSession(f.ctx, SessionInput{
		CatalogID: entry.ID, InstructorID: 3, Room: "studio", StartsAt: sessionStart, Capacity: 10,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.PriceCents != 1200 || sess.Duration != sessionLength || sess.Status != model.SessionScheduled {
		t.Fatalf("unexpected session %+v", sess)
	}

	if _, err := f.catalog.Update(f.ctx, entry.ID, CatalogInput{
		Name: "Spin", Difficulty: model.DifficultyAdvanced, DefaultDuration: 2 * time.Hour, BasePriceCents: 9900, Active: true,
	}); err != nil {
		t.Fatalf("update catalog: %v", err)
	}
	st := f.state(sess.ID)
	if st.Session.PriceCents != 1200 || st.Session.Duration != sessionLength {
		t.Fatalf("catalog edit leaked into existing session: %+v", st.Session)
	}
}

func TestLedger_CreateSession_Rejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	entry := f.entry(0)
	inactive, err := f.catalog.Create(f.ctx, CatalogInput{
		Name: "Old", Difficulty: model.DifficultyBeginner, DefaultDuration: time.Hour,
	})
	if err != nil {
		t.Fatalf("create inactive entry: %v", err)
	}
	if _, err := f.ledger.CreateSession(f.ctx, SessionInput{
		CatalogID: entry.ID, InstructorID: 1, Room: "studio", StartsAt: sessionStart, Capacity: 5,
	}); err != nil {
		t.Fatalf("create first session: %v", err)
	}

	tests := []struct {
		name  string
		in    SessionInput
		check func(error) bool
	}{
		{
			name:  "overlapping room",
			in:    SessionInput{CatalogID: entry.ID, InstructorID: 2, Room: "studio", StartsAt: sessionStart.Add(30 * time.Minute), Capacity: 5},
			check: func(err error) bool { return errors.Is(err, ErrRoomOccupied) },
		},
		{
			name:  "inactive catalog entry",
			in:    SessionInput{CatalogID: inactive.ID, InstructorID: 2, Room: "annex", StartsAt: sessionStart, Capacity: 5},
			check: func(err error) bool { return errors.Is(err, ErrCatalogInactive) },
		},
		{
			name:  "unknown catalog entry",
			in:    SessionInput{CatalogID: 999, InstructorID: 2, Room: "annex", StartsAt: sessionStart, Capacity: 5},
			check: func(err error) bool { return Kind(err) == "not_found" },
		},
		{
			name:  "in the past",
			in:    SessionInput{CatalogID: entry.ID, InstructorID: 2, Room: "annex", StartsAt: sessionStart.Add(-48 * time.Hour), Capacity: 5},
			check: func(err error) bool { return Kind(err) == "validation" },
		},
		{
			name:  "zero capacity",
			in:    SessionInput{CatalogID: entry.ID, InstructorID: 2, Room: "annex", StartsAt: sessionStart, Capacity: 0},
			check: func(err error) bool { return Kind(err) == "validation" },
		},
	}
	for _, tc := range tests {
		_, err := f.ledger.CreateSession(f.ctx, tc.in)
		if !tc.check(err) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}

	// back to back in the same room is fine
	if _, err := f.ledger.CreateSession(f.ctx, SessionInput{
		CatalogID: entry.ID, InstructorID: 2, Room: "studio", StartsAt: sessionStart.Add(sessionLength), Capacity: 5,
	}); err != nil {
		t.Fatalf("expected adjacent session to be accepted, got %v", err)
	}
}

func TestLedger_ResizeSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 0)
	a, _ := f.packageMember(1, 1)
	b, _ := f.packageMember(2, 1)
	c, _ := f.packageMember(3, 1)
	f.book(sess.ID, a)
	bookB := f.book(sess.ID, b)
	bookC := f.book(sess.ID, c)

	state, promoted, err := f.ledger.ResizeSession(f.ctx, sess.ID, 2)
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	if len(promoted) != 1 || promoted[0].ID != bookB.Booking.ID {
		t.Fatalf("expected B promoted into the new seat, got %v", promoted)
	}
	if state.Session.Capacity != 2 || state.SeatsLeft != 0 {
		t.Fatalf("unexpected state %+v", state)
	}
	f.expectState(bookC.Booking.ID, model.BookingWaitlisted)
	f.expectCounters(sess.ID, 2, 1)

	_, _, err = f.ledger.ResizeSession(f.ctx, sess.ID, 1)
	if Kind(err) != "conflict" {
		t.Fatalf("expected shrinking below seats taken to conflict, got %v", err)
	}
	f.expectCounters(sess.ID, 2, 1)
}

func TestLedger_CancelSession_CascadesToBookings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 800)
	a, upA := f.packageMember(1, 1)
	b := f.member(2)
	_ = f.wallets.TopUp(f.ctx, b, 800)
	c, _ := f.packageMember(3, 1)
	bookA := f.book(sess.ID, a)
	bookB, err := f.ledger.RequestBooking(f.ctx, BookingRequest{SessionID: sess.ID, MemberID: b, PayWith: model.PayDropIn})
	if err != nil {
		t.Fatalf("drop-in booking: %v", err)
	}
	bookC := f.book(sess.ID, c)
	// inside the cutoff: cascaded cancellations still give everything back
	f.clock.Set(sessionStart.Add(-30 * time.Minute))

	res, err := f.ledger.CancelSession(f.ctx, sess.ID, "instructor ill")
	if err != nil {
		t.Fatalf("cancel session: %v", err)
	}

	if res.BookingsCancelled != 3 || res.Session.Status != model.SessionCancelled {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, id := range []uint64{bookA.Booking.ID, bookB.Booking.ID, bookC.Booking.ID} {
		f.expectState(id, model.BookingCancelled)
	}
	if got := f.booking(bookA.Booking.ID).CancelReason; got != "session_cancelled: instructor ill" {
		t.Fatalf("unexpected cancel reason %q", got)
	}
	if got := f.userPackage(upA.ID); got.CreditsRemaining != 1 || got.CreditsConsumed != 0 {
		t.Fatalf("expected credit released, got %+v", got)
	}
	if bal, _ := f.wallets.Balance(f.ctx, b); bal != 800 {
		t.Fatalf("expected drop-in refund, balance %d", bal)
	}
	f.expectCounters(sess.ID, 0, 0)
	if got := f.notifier.count(queue.SessionCancelled); got != 3 {
		t.Fatalf("expected 3 cancellation events, got %d", got)
	}

	again, err := f.ledger.CancelSession(f.ctx, sess.ID, "again")
	if err != nil || !again.AlreadyCancelled {
		t.Fatalf("expected repeated cancel to be a no-op, got %+v (%v)", again, err)
	}
	_, err = f.ledger.RequestBooking(f.ctx, BookingRequest{SessionID: sess.ID, MemberID: c, PayWith: model.PayWithPackage})
	if !errors.Is(err, ErrSessionNotOpen) {
		t.Fatalf("expected cancelled session to refuse bookings, got %v", err)
	}
}

func TestLedger_CancelSession_PartialFailureStaysCancelling(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, _ := f.packageMember(1, 1)
	b, _ := f.packageMember(2, 1)
	bookA := f.book(sess.ID, a)
	bookB := f.book(sess.ID, b)

	f.faulty.failNext(1)
	_, err := f.ledger.CancelSession(f.ctx, sess.ID, "flood")
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	st := f.state(sess.ID)
	if st.Session.Status != model.SessionCancelling {
		t.Fatalf("expected session left cancelling, got %s", st.Session.Status)
	}
	f.expectState(bookA.Booking.ID, model.BookingConfirmed)
	_, err = f.ledger.RequestBooking(f.ctx, BookingRequest{SessionID: sess.ID, MemberID: f.member(3), PayWith: model.PayWithPackage})
	if !errors.Is(err, ErrSessionNotOpen) {
		t.Fatalf("expected cancelling session to refuse bookings, got %v", err)
	}

	res, err := f.ledger.AdvanceSessions(f.ctx)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Resumed != 1 {
		t.Fatalf("expected the cancellation to be resumed, got %+v", res)
	}
	if got := f.state(sess.ID).Session.Status; got != model.SessionCancelled {
		t.Fatalf("expected cancelled after repair, got %s", got)
	}
	f.expectState(bookA.Booking.ID, model.BookingCancelled)
	f.expectState(bookB.Booking.ID, model.BookingCancelled)
	f.expectCounters(sess.ID, 0, 0)
}

func TestLedger_CancelSession_CompletedRefused(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	f.clock.Set(sessionStart.Add(2 * sessionLength))

	_, err := f.ledger.CancelSession(f.ctx, sess.ID, "late")

	if Kind(err) != "conflict" {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLedger_AdvanceSessions_MovesThroughStatuses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, _ := f.packageMember(1, 1)
	bookA := f.book(sess.ID, a)

	res, err := f.ledger.AdvanceSessions(f.ctx)
	if err != nil || res.Started+res.Completed != 0 {
		t.Fatalf("expected nothing to advance yet, got %+v (%v)", res, err)
	}

	f.clock.Set(sessionStart.Add(5 * time.Minute))
	res, err = f.ledger.AdvanceSessions(f.ctx)
	if err != nil || res.Started != 1 {
		t.Fatalf("expected session started, got %+v (%v)", res, err)
	}
	if got := f.state(sess.ID).Session.Status; got != model.SessionInProgress {
		t.Fatalf("expected in_progress, got %s", got)
	}

	f.clock.Set(sessionStart.Add(sessionLength))
	res, err = f.ledger.AdvanceSessions(f.ctx)
	if err != nil || res.Completed != 1 || res.NoShows != 1 {
		t.Fatalf("expected completion with one no-show, got %+v (%v)", res, err)
	}
	f.expectState(bookA.Booking.ID, model.BookingNoShow)
}

func TestLedger_GetSessionState_DerivesStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(3, 0)
	a, _ := f.packageMember(1, 1)
	f.book(sess.ID, a)
	f.clock.Set(sessionStart.Add(time.Minute))

	st := f.state(sess.ID)

	if st.Status != model.SessionInProgress || st.Session.Status != model.SessionScheduled {
		t.Fatalf("expected derived in_progress over stored scheduled, got %s/%s", st.Status, st.Session.Status)
	}
	if st.SeatsLeft != 2 {
		t.Fatalf("expected 2 seats left, got %d", st.SeatsLeft)
	}

	list, err := f.ledger.ListSessions(f.ctx, SessionQuery{From: sessionStart.Add(-time.Hour), To: sessionStart.Add(time.Hour)})
	if err != nil || len(list) != 1 || list[0].Session.ID != sess.ID {
		t.Fatalf("expected the session to be listed, got %v (%v)", list, err)
	}
}

func TestLedger_Reconcile_RepairsDrift(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(3, 0)
	a, _ := f.packageMember(1, 1)
	f.book(sess.ID, a)
	err := f.mem.Atomic(f.ctx, func(tx repository.Tx) error {
		return tx.SetSessionCounters(f.ctx, sess.ID, 0, 4)
	})
	if err != nil {
		t.Fatalf("corrupt counters: %v", err)
	}

	res, err := f.ledger.Reconcile(f.ctx, sess.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if !res.Drifted() || !res.Repaired || res.ActualConfirmed != 1 || res.ActualWaitlisted != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	f.expectCounters(sess.ID, 1, 0)

	again, err := f.ledger.Reconcile(f.ctx, sess.ID)
	if err != nil || again.Drifted() {
		t.Fatalf("expected clean second pass, got %+v (%v)", again, err)
	}
}

func TestLedger_Reconcile_OverCapacityIsFault(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 0)
	err := f.mem.Atomic(f.ctx, func(tx repository.Tx) error {
		for i := uint64(1); i <= 2; i++ {
			if err := tx.InsertBooking(f.ctx, &model.Booking{
				SessionID: sess.ID, MemberID: i, State: model.BookingConfirmed, Sequence: i,
				PayWith: model.PayDropIn, CreatedAt: f.clock.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed bookings: %v", err)
	}

	_, err = f.ledger.Reconcile(f.ctx, sess.ID)

	if !errors.Is(err, ErrCapacityFault) {
		t.Fatalf("expected capacity fault, got %v", err)
	}
	f.expectCounters(sess.ID, 0, 0)
}

func TestLedger_MemberViews(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s1 := f.session(1, 0)
	s2 := f.session(1, 0)
	a, _ := f.packageMember(1, 2)
	f.book(s1.ID, a)
	f.book(s2.ID, a)

	bookings, err := f.ledger.MemberBookings(f.ctx, a)
	if err != nil || len(bookings) != 2 {
		t.Fatalf("expected two bookings, got %v (%v)", bookings, err)
	}
	if _, err := f.ledger.GetBooking(f.ctx, bookings[0].ID, 2); Kind(err) != "not_found" {
		t.Fatalf("expected another member's booking to be hidden, got %v", err)
	}
}
