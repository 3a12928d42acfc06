package service

import (
	"context"
	"fmt"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// MemberBookings lists every booking of a member, newest first.
func (l *Ledger) MemberBookings(ctx context.Context, memberID uint64) ([]model.Booking, error) {
	var out []model.Booking
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.ListMemberBookings(ctx, memberID)
		return err
	})
	return out, err
}

// GetBooking returns a booking.  A non-zero memberID restricts the lookup
// to that member's bookings.
func (l *Ledger) GetBooking(ctx context.Context, bookingID, memberID uint64) (*model.Booking, error) {
	var b *model.Booking
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		var err error
		b, err = tx.GetBooking(ctx, bookingID)
		if err != nil {
			return storeErr(err, "booking", bookingID)
		}
		if memberID != 0 && b.MemberID != memberID {
			return fmt.Errorf("%w: booking %d", ErrForbidden, bookingID)
		}
		return nil
	})
	return b, err
}
