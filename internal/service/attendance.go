package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// CheckIn records that the member of a confirmed booking showed up.  It is
// accepted from CheckInOpensBefore ahead of the start until the session
// ends.  The booking keeps its seat and its credit is consumed.
func (l *Ledger) CheckIn(ctx context.Context, bookingID uint64) (booking *model.Booking, err error) {
	ctx, span := l.startSpan(ctx, "check_in", idAttr("booking.id", bookingID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "attendance", "check_in", "booking_id", bookingID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "check-in failed", err)
		}
	}()

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return storeErr(err, "booking", bookingID)
		}
		sess, err := l.lockSession(ctx, tx, logger, b.SessionID)
		if err != nil {
			return err
		}
		if b, err = tx.GetBooking(ctx, bookingID); err != nil {
			return storeErr(err, "booking", bookingID)
		}

		switch b.State {
		case model.BookingConfirmed:
		case model.BookingCheckedIn, model.BookingNoShow:
			return fmt.Errorf("%w: booking %d is %s", ErrAttendanceRecorded, b.ID, b.State)
		default:
			return fmt.Errorf("%w: booking %d is %s, cannot %s", ErrInvalidTransition, b.ID, b.State, model.EventCheckIn)
		}
		if sess.Status == model.SessionCancelling || sess.Status == model.SessionCancelled {
			return fmt.Errorf("%w: session %d is %s", ErrConflict, sess.ID, sess.Status)
		}

		now := l.clock()
		opens := sess.StartsAt.Add(-l.policy.CheckInOpensBefore)
		if now.Before(opens) || !now.Before(sess.EndsAt()) {
			return fmt.Errorf("%w: check-in for session %d runs from %s to %s", ErrInvalidCheckinWindow,
				sess.ID, opens.Format(time.RFC3339), sess.EndsAt().Format(time.RFC3339))
		}

		if err := transition(b, model.EventCheckIn, now); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		checked := now
		if err := tx.InsertAttendance(ctx, &model.Attendance{
			BookingID:   b.ID,
			SessionID:   b.SessionID,
			MemberID:    b.MemberID,
			Outcome:     model.BookingCheckedIn,
			CheckedInAt: &checked,
			RecordedAt:  now,
		}); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: booking %d", ErrAttendanceRecorded, b.ID)
			}
			return err
		}
		if b.PayWith == model.PayWithPackage {
			if err := consumeReservation(ctx, tx, b.ID, now); err != nil {
				return err
			}
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("member checked in", "session_id", booking.SessionID, "member_id", booking.MemberID)
	return booking, nil
}

// SweepResult summarises a no-show sweep.
type SweepResult struct {
	SessionID uint64
	NoShows   int
	// WaitlistCancelled counts waitlisted bookings closed because the
	// session is over.
	WaitlistCancelled int
}

// SweepNoShows completes a session whose time window has passed: every
// confirmed booking without attendance becomes a no-show and consumes its
// credit, and the waitlist is closed.
func (l *Ledger) SweepNoShows(ctx context.Context, sessionID uint64) (res *SweepResult, err error) {
	ctx, span := l.startSpan(ctx, "sweep_no_shows", idAttr("session.id", sessionID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "attendance", "sweep_no_shows", "session_id", sessionID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "no-show sweep failed", err)
		}
	}()

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		sess, err := l.lockSession(ctx, tx, logger, sessionID)
		if err != nil {
			return err
		}
		now := l.clock()
		switch sess.Status {
		case model.SessionCancelling, model.SessionCancelled:
			return fmt.Errorf("%w: session %d is %s", ErrConflict, sess.ID, sess.Status)
		}
		if sess.StatusAt(now) != model.SessionCompleted {
			return fmt.Errorf("%w: session %d has not ended", ErrConflict, sess.ID)
		}
		res, err = l.completeSession(ctx, tx, sess, logger, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// completeSession runs the no-show sweep and marks the session completed
// in the caller's unit of work.
func (l *Ledger) completeSession(ctx context.Context, tx repository.Tx, sess *model.Session, logger *slog.Logger, now time.Time) (*SweepResult, error) {
	res := &SweepResult{SessionID: sess.ID}

	confirmed, err := tx.ListSessionBookings(ctx, sess.ID, model.BookingConfirmed)
	if err != nil {
		return nil, err
	}
	for i := range confirmed {
		b := &confirmed[i]
		if err := transition(b, model.EventNoShow, now); err != nil {
			return nil, err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return nil, err
		}
		if err := tx.InsertAttendance(ctx, &model.Attendance{
			BookingID:  b.ID,
			SessionID:  b.SessionID,
			MemberID:   b.MemberID,
			Outcome:    model.BookingNoShow,
			RecordedAt: now,
		}); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, fmt.Errorf("%w: booking %d", ErrAttendanceRecorded, b.ID)
			}
			return nil, err
		}
		if b.PayWith == model.PayWithPackage {
			if err := consumeReservation(ctx, tx, b.ID, now); err != nil {
				return nil, err
			}
		}
		res.NoShows++
	}

	waiting, err := tx.ListSessionBookings(ctx, sess.ID, model.BookingWaitlisted)
	if err != nil {
		return nil, err
	}
	for i := range waiting {
		b := &waiting[i]
		if _, _, err := l.cancelOne(ctx, tx, sess, b, cancelOptions{reason: "session_completed"}, now, &effects{}); err != nil {
			return nil, err
		}
		res.WaitlistCancelled++
	}

	if sess.Status != model.SessionCompleted {
		if err := tx.UpdateSessionStatus(ctx, sess.ID, model.SessionCompleted, ""); err != nil {
			return nil, err
		}
		sess.Status = model.SessionCompleted
	}
	if res.NoShows > 0 || res.WaitlistCancelled > 0 {
		logger.Info("session completed", "session_id", sess.ID,
			"no_shows", res.NoShows, "waitlist_cancelled", res.WaitlistCancelled)
	}
	return res, nil
}
