package repository

import (
	"context"
	"database/sql"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

const bookingColumns = `id, session_id, member_id, state, sequence, pay_with, user_package_id, charge_ref, cancel_reason, refund_requested, created_at, updated_at, cancelled_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b            model.Booking
		created, upd int64
		cancelled    sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.SessionID, &b.MemberID, &b.State, &b.Sequence, &b.PayWith,
		&b.UserPackageID, &b.ChargeRef, &b.CancelReason, &b.RefundRequested, &created, &upd, &cancelled); err != nil {
		return nil, translate(err)
	}
	b.CreatedAt = fromMS(created)
	b.UpdatedAt = fromMS(upd)
	b.CancelledAt = ptrMS(cancelled)
	return &b, nil
}

func (t *sqlTx) queryBookings(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, translate(rows.Err())
}

func (t *sqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (session_id, member_id, state, sequence, pay_with, user_package_id, charge_ref, cancel_reason, refund_requested, created_at, updated_at, cancelled_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := t.insert(ctx, q, b.SessionID, b.MemberID, string(b.State), b.Sequence, string(b.PayWith),
		b.UserPackageID, b.ChargeRef, b.CancelReason, b.RefundRequested,
		toMS(b.CreatedAt), toMS(b.UpdatedAt), nullMS(b.CancelledAt))
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (t *sqlTx) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(t.tx.QueryRowContext(ctx, q, id))
}

// UpdateBooking persists the mutable fields of a booking.  Session,
// member and sequence never change after insert.
func (t *sqlTx) UpdateBooking(ctx context.Context, b *model.Booking) error {
	const q = `UPDATE bookings SET state = ?, user_package_id = ?, charge_ref = ?, cancel_reason = ?, refund_requested = ?, updated_at = ?, cancelled_at = ? WHERE id = ?`
	return t.execOne(ctx, q, string(b.State), b.UserPackageID, b.ChargeRef, b.CancelReason,
		b.RefundRequested, toMS(b.UpdatedAt), nullMS(b.CancelledAt), b.ID)
}

func (t *sqlTx) ListSessionBookings(ctx context.Context, sessionID uint64, states ...model.BookingState) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE session_id = ?`
	args := []any{sessionID}
	if len(states) > 0 {
		q += ` AND state IN (` + placeholders(len(states)) + `)`
		for _, s := range states {
			args = append(args, string(s))
		}
	}
	q += ` ORDER BY sequence ASC`
	return t.queryBookings(ctx, q, args...)
}

func (t *sqlTx) FindMemberBooking(ctx context.Context, sessionID, memberID uint64, states ...model.BookingState) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE session_id = ? AND member_id = ?`
	args := []any{sessionID, memberID}
	if len(states) > 0 {
		q += ` AND state IN (` + placeholders(len(states)) + `)`
		for _, s := range states {
			args = append(args, string(s))
		}
	}
	q += ` ORDER BY sequence DESC LIMIT 1`
	return scanBooking(t.tx.QueryRowContext(ctx, q, args...))
}

func (t *sqlTx) ListMemberBookings(ctx context.Context, memberID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE member_id = ? ORDER BY created_at DESC, id DESC`
	return t.queryBookings(ctx, q, memberID)
}
