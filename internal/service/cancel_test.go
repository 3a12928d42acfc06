package service

import (
	"errors"
	"testing"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
)

func TestLedger_CancelBooking_PromotesWaitlistBeforeCutoff(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, upA := f.packageMember(1, 1)
	b, _ := f.packageMember(2, 1)
	c, upC := f.packageMember(3, 1)

	bookA := f.book(sess.ID, a)
	f.book(sess.ID, b)
	bookC := f.book(sess.ID, c)
	if bookC.Booking.State != model.BookingWaitlisted || bookC.Booking.Sequence <= bookA.Booking.Sequence {
		t.Fatalf("expected C waitlisted after A, got %+v", bookC.Booking)
	}
	f.expectCounters(sess.ID, 2, 1)

	res, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID, MemberID: a, Reason: "sick"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if res.Booking.State != model.BookingCancelled || res.Late || res.CreditConsumed {
		t.Fatalf("expected early cancellation, got %+v", res)
	}
	if res.Promoted == nil || res.Promoted.ID != bookC.Booking.ID {
		t.Fatalf("expected C to be promoted, got %+v", res.Promoted)
	}
	f.expectState(bookC.Booking.ID, model.BookingConfirmed)
	f.expectCounters(sess.ID, 2, 0)
	if got := f.userPackage(upA.ID); got.CreditsRemaining != 1 || got.CreditsReserved != 0 {
		t.Fatalf("expected A's credit released, got %+v", got)
	}
	if got := f.userPackage(upC.ID); got.CreditsReserved != 1 || got.CreditsRemaining != 0 {
		t.Fatalf("expected C's credit reserved on promotion, got %+v", got)
	}
	if f.notifier.count(queue.WaitlistPromoted) != 1 {
		t.Fatalf("expected one promotion event")
	}
	wl, err := f.ledger.GetWaitlist(f.ctx, sess.ID)
	if err != nil || len(wl) != 0 {
		t.Fatalf("expected empty waitlist, got %v (%v)", wl, err)
	}
}

func TestLedger_CancelBooking_SkipsWaitlistedMemberWithoutCredit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 0)
	other := f.session(1, 0)
	a, _ := f.packageMember(1, 1)
	b, _ := f.packageMember(2, 1)
	c, _ := f.packageMember(3, 1)

	bookA := f.book(sess.ID, a)
	bookB := f.book(sess.ID, b)
	bookC := f.book(sess.ID, c)
	// B spends the only credit elsewhere while waiting
	f.book(other.ID, b)

	res, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID, MemberID: a})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if res.Promoted == nil || res.Promoted.ID != bookC.Booking.ID {
		t.Fatalf("expected C to be promoted past B, got %+v", res.Promoted)
	}
	f.expectState(bookB.Booking.ID, model.BookingWaitlisted)
	f.expectCounters(sess.ID, 1, 1)
}

func TestLedger_CancelBooking_LeavesSeatFreeWhenNobodyQualifies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 500)
	a, _ := f.packageMember(1, 1)
	b := f.member(2)
	bookA := f.book(sess.ID, a)
	waiting, err := f.ledger.RequestBooking(f.ctx, BookingRequest{SessionID: sess.ID, MemberID: b, PayWith: model.PayDropIn})
	if err != nil || waiting.Booking.State != model.BookingWaitlisted {
		t.Fatalf("expected waitlisted drop-in booking, got %+v (%v)", waiting, err)
	}

	res, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if res.Promoted != nil {
		t.Fatalf("expected nobody promoted, got %+v", res.Promoted)
	}
	f.expectCounters(sess.ID, 0, 1)

	_ = f.wallets.TopUp(f.ctx, b, 500)
	promoted, err := f.ledger.PromoteWaitlist(f.ctx, sess.ID)
	if err != nil || len(promoted) != 1 || promoted[0].ID != waiting.Booking.ID {
		t.Fatalf("expected explicit re-scan to promote B, got %v (%v)", promoted, err)
	}
	f.expectCounters(sess.ID, 1, 0)
}

func TestLedger_CancelBooking_IsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(3, 0)
	a, upA := f.packageMember(1, 1)
	b, _ := f.packageMember(2, 1)
	bookA := f.book(sess.ID, a)
	f.book(sess.ID, b)

	first, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID, MemberID: a})
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	second, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID, MemberID: a})
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	if !second.AlreadyCancelled || second.Booking.State != first.Booking.State {
		t.Fatalf("expected unchanged terminal state, got %+v", second)
	}
	f.expectCounters(sess.ID, 1, 0)
	if got := f.userPackage(upA.ID); got.CreditsRemaining != 1 || !got.Balanced() {
		t.Fatalf("expected a single release, got %+v", got)
	}
}

func TestLedger_CancelBooking_LateConsumesCredit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, upA := f.packageMember(1, 2)
	bookA := f.book(sess.ID, a)
	f.clock.Set(sessionStart.Add(-time.Hour))

	res, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID, MemberID: a, RefundRequested: true})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if !res.Late || !res.CreditConsumed || !res.Booking.RefundRequested {
		t.Fatalf("expected late cancellation consuming the credit, got %+v", res)
	}
	got := f.userPackage(upA.ID)
	if got.CreditsConsumed != 1 || got.CreditsRemaining != 1 || !got.Balanced() {
		t.Fatalf("unexpected credits %+v", got)
	}
	f.expectCounters(sess.ID, 0, 0)
}

func TestLedger_CancelBooking_ApprovedRefundReleasesLateCredit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, upA := f.packageMember(1, 1)
	bookA := f.book(sess.ID, a)
	f.clock.Set(sessionStart.Add(-time.Hour))

	res, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID, RefundApproved: true})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if !res.Late || res.CreditConsumed {
		t.Fatalf("expected late cancellation with released credit, got %+v", res)
	}
	if got := f.userPackage(upA.ID); got.CreditsRemaining != 1 || got.CreditsConsumed != 0 {
		t.Fatalf("unexpected credits %+v", got)
	}
}

func TestLedger_CancelBooking_OtherMembersBookingIsHidden(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, _ := f.packageMember(1, 1)
	bookA := f.book(sess.ID, a)

	_, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID, MemberID: 2})

	if !errors.Is(err, ErrForbidden) || Kind(err) != "not_found" {
		t.Fatalf("expected not_found, got %v", err)
	}
	f.expectState(bookA.Booking.ID, model.BookingConfirmed)
}

func TestLedger_CancelBooking_CheckedInCannotCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(2, 0)
	a, _ := f.packageMember(1, 1)
	bookA := f.book(sess.ID, a)
	f.clock.Set(sessionStart.Add(-10 * time.Minute))
	if _, err := f.ledger.CheckIn(f.ctx, bookA.Booking.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}

	_, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookA.Booking.ID})

	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	f.expectCounters(sess.ID, 1, 0)
}

func TestLedger_CancelBooking_WaitlistedEntry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sess := f.session(1, 0)
	a, _ := f.packageMember(1, 1)
	b, _ := f.packageMember(2, 1)
	f.book(sess.ID, a)
	bookB := f.book(sess.ID, b)

	res, err := f.ledger.CancelBooking(f.ctx, CancelRequest{BookingID: bookB.Booking.ID, MemberID: b})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if res.Promoted != nil || res.Booking.State != model.BookingCancelled {
		t.Fatalf("unexpected result %+v", res)
	}
	f.expectCounters(sess.ID, 1, 0)
}
