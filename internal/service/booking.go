package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/queue"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// errPaymentUnavailable wraps payment service failures other than a
// decline.
var errPaymentUnavailable = errors.New("payment service unavailable")

// BookingRequest asks for a seat in a session.
type BookingRequest struct {
	SessionID uint64
	MemberID  uint64
	PayWith   model.PaymentMethod
	// UserPackageID selects the package to draw from.  Zero picks the
	// usable package that expires first.
	UserPackageID uint64
	// IdempotencyKey is forwarded to the payment service for drop-in
	// charges.  A random key is used when empty.
	IdempotencyKey string
}

func (r BookingRequest) validate() error {
	v := &ValidationError{}
	if r.SessionID == 0 {
		v.add("session_id", "is required")
	}
	if r.MemberID == 0 {
		v.add("member_id", "is required")
	}
	if !r.PayWith.Valid() {
		v.add("pay_with", "must be package or dropin")
	}
	if r.PayWith == model.PayDropIn && r.UserPackageID != 0 {
		v.add("user_package_id", "only applies to package payments")
	}
	return v.orNil()
}

// BookingResult is the outcome of an accepted booking request.
type BookingResult struct {
	Booking model.Booking
	Session model.Session
	// WaitlistPosition is 1-based for waitlisted bookings and zero otherwise.
	WaitlistPosition int
}

// RequestBooking admits the member to the session when a seat is free and
// waitlists them otherwise.  An admitted booking reserves a package credit
// or charges the drop-in fee in the same unit of work; when that fails
// nothing is written.
func (l *Ledger) RequestBooking(ctx context.Context, req BookingRequest) (res *BookingResult, err error) {
	ctx, span := l.startSpan(ctx, "request_booking", idAttr("session.id", req.SessionID), idAttr("member.id", req.MemberID))
	defer func() { endSpan(span, err) }()
	logger := serviceLogger(ctx, l.logger, "ledger", "request_booking",
		"session_id", req.SessionID, "member_id", req.MemberID, "pay_with", req.PayWith)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "booking request failed", err)
		}
	}()

	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := l.activeMember(ctx, req.MemberID); err != nil {
		return nil, err
	}
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	err = l.atomic(ctx, logger, func(ctx context.Context, tx repository.Tx, fx *effects) error {
		sess, err := l.lockSession(ctx, tx, logger, req.SessionID)
		if err != nil {
			return err
		}
		now := l.clock()
		if err := l.checkOpen(sess, now); err != nil {
			return err
		}
		switch _, err := tx.FindMemberBooking(ctx, sess.ID, req.MemberID, model.BookingConfirmed, model.BookingWaitlisted); {
		case err == nil:
			return fmt.Errorf("%w: member %d, session %d", ErrDuplicateActiveBooking, req.MemberID, sess.ID)
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		seq, err := tx.NextSequence(ctx, sess.ID)
		if err != nil {
			return err
		}
		b := &model.Booking{
			SessionID:     sess.ID,
			MemberID:      req.MemberID,
			Sequence:      seq,
			PayWith:       req.PayWith,
			UserPackageID: req.UserPackageID,
			CreatedAt:     now,
		}

		admitted, err := tx.ReserveSeat(ctx, sess.ID)
		if err != nil {
			return err
		}
		if admitted && sess.ConfirmedCount >= sess.Capacity {
			logger.Error("seat admitted on a full session",
				"session_id", sess.ID, "capacity", sess.Capacity, "confirmed_count", sess.ConfirmedCount)
			return fmt.Errorf("%w: session %d admitted past capacity %d", ErrCapacityFault, sess.ID, sess.Capacity)
		}

		if !admitted {
			if err := l.checkEntitlement(ctx, tx, sess, b, now); err != nil {
				return err
			}
			if err := transition(b, model.EventWaitlist, now); err != nil {
				return err
			}
			if err := tx.InsertBooking(ctx, b); err != nil {
				return err
			}
			if err := tx.AdjustWaitlist(ctx, sess.ID, 1); err != nil {
				return err
			}
			sess.WaitlistCount++
			pos, err := waitlistPosition(ctx, tx, sess.ID, b.ID)
			if err != nil {
				return err
			}
			res = &BookingResult{Booking: *b, Session: *sess, WaitlistPosition: pos}
			return nil
		}

		if err := transition(b, model.EventAdmit, now); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := l.secureEntitlement(ctx, tx, sess, b, key, now, fx); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		sess.ConfirmedCount++
		fx.events = append(fx.events, sessionEvent(queue.BookingConfirmed, sess, b, now))
		res = &BookingResult{Booking: *b, Session: *sess}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("booking accepted", "booking_id", res.Booking.ID, "state", res.Booking.State,
		"sequence", res.Booking.Sequence, "waitlist_position", res.WaitlistPosition)
	return res, nil
}

// checkOpen enforces that the session takes bookings at now.
func (l *Ledger) checkOpen(sess *model.Session, now time.Time) error {
	if sess.Status != model.SessionScheduled || sess.StatusAt(now) != model.SessionScheduled {
		return fmt.Errorf("%w: session %d is %s", ErrSessionNotOpen, sess.ID, sess.StatusAt(now))
	}
	if !now.Before(sess.StartsAt.Add(-l.policy.LatestBookingOffset)) {
		return fmt.Errorf("%w: booking for session %d closed", ErrSessionNotOpen, sess.ID)
	}
	if l.policy.BookingOpensBefore > 0 && now.Before(sess.StartsAt.Add(-l.policy.BookingOpensBefore)) {
		return fmt.Errorf("%w: booking for session %d opens at %s", ErrSessionNotOpen, sess.ID,
			sess.StartsAt.Add(-l.policy.BookingOpensBefore).Format(time.RFC3339))
	}
	return nil
}

// secureEntitlement pays for the seat b is about to hold: a package credit
// is reserved, or the drop-in fee is charged.  Nothing is written when it
// fails with ErrInsufficientCredit.
func (l *Ledger) secureEntitlement(ctx context.Context, tx repository.Tx, sess *model.Session, b *model.Booking, key string, now time.Time, fx *effects) error {
	switch b.PayWith {
	case model.PayWithPackage:
		up, err := pickPackage(ctx, tx, b.MemberID, b.UserPackageID, sess, now)
		if err != nil {
			return err
		}
		if err := reserveCredit(ctx, tx, up.ID, b.ID, now); err != nil {
			return err
		}
		b.UserPackageID = up.ID
		return nil

	case model.PayDropIn:
		if sess.PriceCents == 0 {
			return nil
		}
		ref, err := l.payments.ChargeDropinFee(ctx, b.MemberID, sess.PriceCents, key)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return fmt.Errorf("%w: member %d, %d cents", ErrPaymentDeclined, b.MemberID, sess.PriceCents)
			}
			return fmt.Errorf("%w: %w", errPaymentUnavailable, err)
		}
		b.ChargeRef = ref
		fx.charges = append(fx.charges, ref)
		return nil
	}
	return fmt.Errorf("unknown payment method %q", b.PayWith)
}

// checkEntitlement verifies a waitlisted request could be paid for today
// without reserving anything.  Drop-in fees are charged on promotion.
func (l *Ledger) checkEntitlement(ctx context.Context, tx repository.Tx, sess *model.Session, b *model.Booking, now time.Time) error {
	if b.PayWith != model.PayWithPackage {
		return nil
	}
	if b.UserPackageID != 0 {
		up, err := tx.GetUserPackage(ctx, b.UserPackageID)
		if err != nil {
			return storeErr(err, "package", b.UserPackageID)
		}
		if up.MemberID != b.MemberID {
			return fmt.Errorf("%w: package %d", ErrForbidden, up.ID)
		}
		if !up.UsableFor(now, sess.StartsAt) {
			return fmt.Errorf("%w: package %d cannot pay for session %d", ErrInsufficientCredit, up.ID, sess.ID)
		}
		return nil
	}
	pkgs, err := tx.ListUserPackages(ctx, b.MemberID)
	if err != nil {
		return err
	}
	for _, up := range pkgs {
		if up.UsableFor(now, sess.StartsAt) {
			return nil
		}
	}
	return fmt.Errorf("%w: member %d has no usable package for session %d", ErrInsufficientCredit, b.MemberID, sess.ID)
}

func waitlistPosition(ctx context.Context, tx repository.Tx, sessionID, bookingID uint64) (int, error) {
	waiting, err := tx.ListSessionBookings(ctx, sessionID, model.BookingWaitlisted)
	if err != nil {
		return 0, err
	}
	for i, w := range waiting {
		if w.ID == bookingID {
			return i + 1, nil
		}
	}
	return 0, nil
}
