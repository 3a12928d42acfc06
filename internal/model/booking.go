package model

import (
	"errors"
	"time"
)

// BookingState is the position of a booking in the reservation state
// machine.
type BookingState string

const (
	BookingConfirmed  BookingState = "confirmed"
	BookingWaitlisted BookingState = "waitlisted"
	BookingCancelled  BookingState = "cancelled"
	BookingCheckedIn  BookingState = "checked_in"
	BookingNoShow     BookingState = "no_show"
)

// Active reports whether the booking still claims a seat or a waitlist
// position.  A member may hold at most one active booking per session.
func (s BookingState) Active() bool {
	return s == BookingConfirmed || s == BookingWaitlisted
}

// HoldsSeat reports whether the booking is counted in the session's
// ConfirmedCount.  Only cancellation gives a seat back.
func (s BookingState) HoldsSeat() bool {
	return s == BookingConfirmed || s == BookingCheckedIn || s == BookingNoShow
}

// Terminal reports whether the booking can no longer change state.
func (s BookingState) Terminal() bool {
	return s == BookingCancelled || s == BookingCheckedIn || s == BookingNoShow
}

// BookingEvent drives a transition of the booking state machine.
type BookingEvent string

const (
	EventAdmit    BookingEvent = "admit"
	EventWaitlist BookingEvent = "waitlist"
	EventCancel   BookingEvent = "cancel"
	EventPromote  BookingEvent = "promote"
	EventCheckIn  BookingEvent = "check_in"
	EventNoShow   BookingEvent = "no_show"
)

// ErrInvalidTransition is returned by Transition when the event is not
// accepted in the current state.
var ErrInvalidTransition = errors.New("invalid booking state transition")

// transitions lists every accepted (state, event) pair.  The empty
// state is the starting point of a new booking request.
var transitions = map[BookingState]map[BookingEvent]BookingState{
	"": {
		EventAdmit:    BookingConfirmed,
		EventWaitlist: BookingWaitlisted,
	},
	BookingConfirmed: {
		EventCancel:  BookingCancelled,
		EventCheckIn: BookingCheckedIn,
		EventNoShow:  BookingNoShow,
	},
	BookingWaitlisted: {
		EventCancel:  BookingCancelled,
		EventPromote: BookingConfirmed,
	},
}

// Transition returns the state reached from `from` on event ev.
func Transition(from BookingState, ev BookingEvent) (BookingState, error) {
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return from, ErrInvalidTransition
}

// PaymentMethod tells how a booking is paid for.
type PaymentMethod string

const (
	// PayWithPackage draws one credit from a prepaid package.
	PayWithPackage PaymentMethod = "package"
	// PayDropIn charges the session's drop-in price through the payment service.
	PayDropIn PaymentMethod = "dropin"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool { return m == PayWithPackage || m == PayDropIn }

// Booking records a member's claim on a seat in a session.  Bookings are
// never deleted; cancelled bookings stay for audit and reporting.
//
// Fields:
//  ID              – primary key identifier.
//  SessionID       – session the booking belongs to.
//  MemberID        – member who requested the booking.
//  State           – confirmed, waitlisted, cancelled, checked_in or no_show.
//  Sequence        – per-session monotonically increasing number; waitlist order.
//  PayWith         – package or dropin.
//  UserPackageID   – package instance a credit is drawn from (0 picks one at admission).
//  ChargeRef       – payment service reference of a drop-in charge.
//  CancelReason    – optional reason given on cancellation.
//  RefundRequested – member asked for a refund on cancellation.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
//  CancelledAt     – when the booking was cancelled (nil otherwise).
type Booking struct {
	ID              uint64        // bookings.id
	SessionID       uint64        // bookings.session_id
	MemberID        uint64        // bookings.member_id
	State           BookingState  // bookings.state
	Sequence        uint64        // bookings.sequence
	PayWith         PaymentMethod // bookings.pay_with
	UserPackageID   uint64        // bookings.user_package_id
	ChargeRef       string        // bookings.charge_ref
	CancelReason    string        // bookings.cancel_reason
	RefundRequested bool          // bookings.refund_requested
	CreatedAt       time.Time     // bookings.created_at
	UpdatedAt       time.Time     // bookings.updated_at
	CancelledAt     *time.Time    // bookings.cancelled_at (nullable)
}

// Apply moves the booking through the state machine and stamps the
// update time.
func (b *Booking) Apply(ev BookingEvent, at time.Time) error {
	next, err := Transition(b.State, ev)
	if err != nil {
		return err
	}
	b.State = next
	b.UpdatedAt = at
	if next == BookingCancelled {
		t := at
		b.CancelledAt = &t
	}
	return nil
}
