package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// CancelRequest cancels one booking.
type CancelRequest struct {
	BookingID uint64
	// MemberID restricts the cancellation to the booking's owner.  Zero
	// is used by administrators.
	MemberID        uint64
	Reason          string
	RefundRequested bool
	// RefundApproved releases the credit or refunds the fee even after the
	// cancellation cutoff.  Only administrators may set it.
	RefundApproved bool
}

// CancelResult reports what a cancellation did.
type CancelResult struct {
	Booking model.Booking
	// AlreadyCancelled is true when the booking was cancelled before this
	// request; nothing changed.
	AlreadyCancelled bool
	// Late is true when the cancellation happened at or after the cutoff.
	Late bool
	// CreditConsumed is true when the reserved credit was spent rather
	// than released.
	CreditConsumed bool
	// Promoted is the waitlisted booking that took the freed seat, if any.
	Promoted *model.Booking
}

// CancelBooking cancels a confirmed or waitlisted booking.  Cancelling a
// cancelled booking returns it unchanged.  A confirmed booking frees its
// seat and triggers one waitlist promotion.
func (l *Ledger) CancelBooking(ctx context.Context, req CancelRequest) (res *CancelResult, err error) {
	ctx, span := l.startSpan(ctx, "cancel_booking", idAttr("booking.id", req.BookingID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "ledger", "cancel_booking", "booking_id", req.BookingID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "cancel booking failed", err)
		}
	}()

	if req.BookingID == 0 {
		return nil, &ValidationError{FieldErrors: map[string]string{"booking_id": "is required"}}
	}

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		b, err := tx.GetBooking(ctx, req.BookingID)
		if err != nil {
			return storeErr(err, "booking", req.BookingID)
		}
		if req.MemberID != 0 && b.MemberID != req.MemberID {
			return fmt.Errorf("%w: booking %d", ErrForbidden, b.ID)
		}
		sess, err := l.lockSession(ctx, tx, logger, b.SessionID)
		if err != nil {
			return err
		}
		// re-read under the session lock
		if b, err = tx.GetBooking(ctx, req.BookingID); err != nil {
			return storeErr(err, "booking", req.BookingID)
		}
		if b.State == model.BookingCancelled {
			res = &CancelResult{Booking: *b, AlreadyCancelled: true}
			return nil
		}

		now := l.clock()
		heldSeat := b.State == model.BookingConfirmed
		res = &CancelResult{}
		res.Late, res.CreditConsumed, err = l.cancelOne(ctx, tx, sess, b, cancelOptions{
			reason:          req.Reason,
			refundRequested: req.RefundRequested,
			refundApproved:  req.RefundApproved,
		}, now, fx)
		if err != nil {
			return err
		}
		res.Booking = *b

		if heldSeat && sess.Status == model.SessionScheduled && sess.StatusAt(now) == model.SessionScheduled {
			res.Promoted, err = l.promoteNext(ctx, tx, sess, logger, now, fx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	attrs := []any{"late", res.Late, "credit_consumed", res.CreditConsumed, "already_cancelled", res.AlreadyCancelled}
	if res.Promoted != nil {
		attrs = append(attrs, "promoted_booking_id", res.Promoted.ID)
	}
	logger.Info("booking cancelled", attrs...)
	return res, nil
}

type cancelOptions struct {
	reason          string
	refundRequested bool
	refundApproved  bool
	// sessionCancelled marks cancellations cascaded from the gym
	// cancelling the session; they always release credits and refund.
	sessionCancelled bool
}

// cancelOne cancels b, which must be locked through its session, and
// applies the seat, waitlist and credit effects.  It reports whether the
// cancellation was late and whether a credit was consumed.
func (l *Ledger) cancelOne(ctx context.Context, tx repository.Tx, sess *model.Session, b *model.Booking, opts cancelOptions, now time.Time, fx *effects) (late, consumed bool, err error) {
	from := b.State
	if err := transition(b, model.EventCancel, now); err != nil {
		return false, false, err
	}
	b.CancelReason = opts.reason
	b.RefundRequested = opts.refundRequested
	if err := tx.UpdateBooking(ctx, b); err != nil {
		return false, false, err
	}

	if from == model.BookingWaitlisted {
		return false, false, tx.AdjustWaitlist(ctx, sess.ID, -1)
	}

	if err := tx.ReleaseSeat(ctx, sess.ID); err != nil {
		return false, false, err
	}
	if sess.ConfirmedCount > 0 {
		sess.ConfirmedCount--
	}

	late = !opts.sessionCancelled && !now.Before(sess.StartsAt.Add(-l.policy.CancelCutoff))
	keep := late && !opts.refundApproved

	switch b.PayWith {
	case model.PayWithPackage:
		if keep {
			return late, true, consumeReservation(ctx, tx, b.ID, now)
		}
		return late, false, releaseReservation(ctx, tx, b.ID, now)
	case model.PayDropIn:
		if !keep && b.ChargeRef != "" {
			fx.refunds = append(fx.refunds, b.ChargeRef)
		}
	}
	return late, false, nil
}

func (l *Ledger) logPromotion(logger *slog.Logger, sess *model.Session, b *model.Booking) {
	logger.Info("waitlisted booking promoted",
		"session_id", sess.ID, "booking_id", b.ID, "member_id", b.MemberID, "sequence", b.Sequence)
}
