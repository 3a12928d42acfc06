package repository

import (
	"context"
	"database/sql"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

// InsertAttendance writes the outcome of a booking.  The booking id is the
// primary key, so a second outcome fails with ErrConflict.
func (t *sqlTx) InsertAttendance(ctx context.Context, a *model.Attendance) error {
	const q = `INSERT INTO attendance (booking_id, session_id, member_id, outcome, checked_in_at, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := t.exec(ctx, q, a.BookingID, a.SessionID, a.MemberID, string(a.Outcome), nullMS(a.CheckedInAt), toMS(a.RecordedAt))
	return err
}

func (t *sqlTx) GetAttendance(ctx context.Context, bookingID uint64) (*model.Attendance, error) {
	const q = `SELECT booking_id, session_id, member_id, outcome, checked_in_at, recorded_at FROM attendance WHERE booking_id = ?`
	var (
		a        model.Attendance
		checked  sql.NullInt64
		recorded int64
	)
	if err := t.tx.QueryRowContext(ctx, q, bookingID).Scan(&a.BookingID, &a.SessionID, &a.MemberID, &a.Outcome, &checked, &recorded); err != nil {
		return nil, translate(err)
	}
	a.CheckedInAt = ptrMS(checked)
	a.RecordedAt = fromMS(recorded)
	return &a, nil
}
