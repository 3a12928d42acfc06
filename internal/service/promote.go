package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// promoteNext fills one free seat from the waitlist.  Entries are tried in
// sequence order; an entry whose member cannot pay is skipped and stays
// waitlisted for manual resolution.  It returns nil when no seat is free
// or no entry qualifies.  The caller holds the session lock.
func (l *Ledger) promoteNext(ctx context.Context, tx repository.Tx, sess *model.Session, logger *slog.Logger, now time.Time, fx *effects) (*model.Booking, error) {
	if sess.WaitlistCount == 0 {
		return nil, nil
	}

	admitted, err := tx.ReserveSeat(ctx, sess.ID)
	if err != nil || !admitted {
		return nil, err
	}

	waiting, err := tx.ListSessionBookings(ctx, sess.ID, model.BookingWaitlisted)
	if err != nil {
		return nil, err
	}
	for i := range waiting {
		b := &waiting[i]
		err := l.secureEntitlement(ctx, tx, sess, b, "promote-"+uuid.NewString(), now, fx)
		if errors.Is(err, ErrInsufficientCredit) || errors.Is(err, ErrForbidden) || errors.Is(err, errPaymentUnavailable) {
			logger.Info("skipping waitlisted booking that cannot pay",
				"session_id", sess.ID, "booking_id", b.ID, "member_id", b.MemberID,
				"sequence", b.Sequence, "reason", err.Error())
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := transition(b, model.EventPromote, now); err != nil {
			return nil, err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return nil, err
		}
		if err := tx.AdjustWaitlist(ctx, sess.ID, -1); err != nil {
			return nil, err
		}
		sess.ConfirmedCount++
		if sess.WaitlistCount > 0 {
			sess.WaitlistCount--
		}
		l.logPromotion(logger, sess, b)
		fx.events = append(fx.events, sessionEvent(queue.WaitlistPromoted, sess, b, now))
		return b, nil
	}

	// nobody could take the seat; give it back
	if err := tx.ReleaseSeat(ctx, sess.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

// PromoteWaitlist re-scans the waitlist and promotes entries until the
// session is full or no entry qualifies.
func (l *Ledger) PromoteWaitlist(ctx context.Context, sessionID uint64) (promoted []model.Booking, err error) {
	ctx, span := l.startSpan(ctx, "promote_waitlist", idAttr("session.id", sessionID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "ledger", "promote_waitlist", "session_id", sessionID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "promote waitlist failed", err)
		}
	}()

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		promoted = nil
		sess, err := l.lockSession(ctx, tx, logger, sessionID)
		if err != nil {
			return err
		}
		now := l.clock()
		if sess.Status != model.SessionScheduled || sess.StatusAt(now) != model.SessionScheduled {
			return fmt.Errorf("%w: session %d is %s", ErrSessionNotOpen, sess.ID, sess.StatusAt(now))
		}
		promoted, err = l.promoteUpTo(ctx, tx, sess, logger, now, fx, sess.Capacity)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("waitlist re-scanned", "promoted", len(promoted))
	return promoted, nil
}

// promoteUpTo runs promoteNext at most n times, stopping at the first
// round that promotes nobody.
func (l *Ledger) promoteUpTo(ctx context.Context, tx repository.Tx, sess *model.Session, logger *slog.Logger, now time.Time, fx *effects, n int) ([]model.Booking, error) {
	var out []model.Booking
	for i := 0; i < n && sess.ConfirmedCount < sess.Capacity; i++ {
		b, err := l.promoteNext(ctx, tx, sess, logger, now, fx)
		if err != nil {
			return nil, err
		}
		if b == nil {
			break
		}
		out = append(out, *b)
	}
	return out, nil
}
