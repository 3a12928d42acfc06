package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

const sessionColumns = `id, catalog_id, instructor_id, room, starts_at, duration_ms, capacity, confirmed_count, waitlist_count, next_sequence, status, cancel_reason, price_cents, rating_sum, rating_count, created_at, updated_at`

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s                           model.Session
		starts, durMS, created, upd int64
	)
	if err := row.Scan(&s.ID, &s.CatalogID, &s.InstructorID, &s.Room, &starts, &durMS, &s.Capacity,
		&s.ConfirmedCount, &s.WaitlistCount, &s.NextSequence, &s.Status, &s.CancelReason,
		&s.PriceCents, &s.RatingSum, &s.RatingCount, &created, &upd); err != nil {
		return nil, translate(err)
	}
	s.StartsAt = fromMS(starts)
	s.Duration = time.Duration(durMS) * time.Millisecond
	s.CreatedAt = fromMS(created)
	s.UpdatedAt = fromMS(upd)
	return &s, nil
}

func (t *sqlTx) InsertSession(ctx context.Context, s *model.Session) error {
	const q = `INSERT INTO class_sessions (catalog_id, instructor_id, room, starts_at, duration_ms, capacity, confirmed_count, waitlist_count, next_sequence, status, cancel_reason, price_cents, rating_sum, rating_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?, 0, 0, ?, ?)`
	id, err := t.insert(ctx, q, s.CatalogID, s.InstructorID, s.Room, toMS(s.StartsAt), s.Duration.Milliseconds(),
		s.Capacity, string(s.Status), s.CancelReason, s.PriceCents, toMS(s.CreatedAt), toMS(s.UpdatedAt))
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (t *sqlTx) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = ?`
	return scanSession(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) LockSession(ctx context.Context, id uint64) (*model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM class_sessions WHERE id = ?` + t.lock
	return scanSession(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) ListSessions(ctx context.Context, f SessionFilter) ([]model.Session, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		where = append(where, `status IN (`+placeholders(len(f.Statuses))+`)`)
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.CatalogID != 0 {
		where = append(where, `catalog_id = ?`)
		args = append(args, f.CatalogID)
	}
	if f.Room != "" {
		where = append(where, `room = ?`)
		args = append(args, f.Room)
	}
	if !f.StartsFrom.IsZero() {
		where = append(where, `starts_at >= ?`)
		args = append(args, toMS(f.StartsFrom))
	}
	if !f.StartsBy.IsZero() {
		where = append(where, `starts_at <= ?`)
		args = append(args, toMS(f.StartsBy))
	}
	if !f.StartsBefore.IsZero() {
		where = append(where, `starts_at < ?`)
		args = append(args, toMS(f.StartsBefore))
	}
	if !f.EndsAfter.IsZero() {
		where = append(where, `starts_at + duration_ms > ?`)
		args = append(args, toMS(f.EndsAfter))
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + sessionColumns + ` FROM class_sessions`)
	if len(where) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(where, ` AND `))
	}
	sb.WriteString(` ORDER BY starts_at, id`)
	if f.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}

	rows, err := t.tx.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, translate(rows.Err())
}

// ReserveSeat is a compare-and-increment: the row only changes while a
// seat is left, so the affected row count is the admission decision.
func (t *sqlTx) ReserveSeat(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE class_sessions SET confirmed_count = confirmed_count + 1 WHERE id = ? AND confirmed_count < capacity`
	res, err := t.exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *sqlTx) ReleaseSeat(ctx context.Context, id uint64) error {
	const q = `UPDATE class_sessions SET confirmed_count = confirmed_count - 1 WHERE id = ? AND confirmed_count > 0`
	_, err := t.exec(ctx, q, id)
	return err
}

func (t *sqlTx) AdjustWaitlist(ctx context.Context, id uint64, delta int) error {
	const q = `UPDATE class_sessions SET waitlist_count = CASE WHEN waitlist_count + ? < 0 THEN 0 ELSE waitlist_count + ? END WHERE id = ?`
	return t.execOne(ctx, q, delta, delta, id)
}

func (t *sqlTx) NextSequence(ctx context.Context, id uint64) (uint64, error) {
	if err := t.execOne(ctx, `UPDATE class_sessions SET next_sequence = next_sequence + 1 WHERE id = ?`, id); err != nil {
		return 0, err
	}
	var seq uint64
	err := t.tx.QueryRowContext(ctx, `SELECT next_sequence FROM class_sessions WHERE id = ?`, id).Scan(&seq)
	return seq, translate(err)
}

func (t *sqlTx) UpdateSessionStatus(ctx context.Context, id uint64, status model.SessionStatus, reason string) error {
	const q = `UPDATE class_sessions SET status = ?, cancel_reason = ?, updated_at = ? WHERE id = ?`
	return t.execOne(ctx, q, string(status), reason, toMS(time.Now()), id)
}

func (t *sqlTx) UpdateSessionCapacity(ctx context.Context, id uint64, capacity int) error {
	const q = `UPDATE class_sessions SET capacity = ?, updated_at = ? WHERE id = ? AND confirmed_count <= ?`
	err := t.execOne(ctx, q, capacity, toMS(time.Now()), id, capacity)
	if errors.Is(err, ErrNotFound) {
		// the row exists whenever the caller holds its lock
		return ErrConflict
	}
	return err
}

func (t *sqlTx) SetSessionCounters(ctx context.Context, id uint64, confirmed, waitlisted int) error {
	const q = `UPDATE class_sessions SET confirmed_count = ?, waitlist_count = ?, updated_at = ? WHERE id = ?`
	return t.execOne(ctx, q, confirmed, waitlisted, toMS(time.Now()), id)
}

func (t *sqlTx) AddSessionRating(ctx context.Context, id uint64, sumDelta, countDelta int64) error {
	const q = `UPDATE class_sessions SET rating_sum = rating_sum + ?, rating_count = rating_count + ? WHERE id = ?`
	return t.execOne(ctx, q, sumDelta, countDelta, id)
}
