package repository

import (
	"context"
	"errors"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/model"
)

const userPackageColumns = `id, member_id, package_id, credits_total, credits_remaining, credits_reserved, credits_consumed, expires_at, created_at`

func scanPackage(row rowScanner) (*model.Package, error) {
	var (
		p       model.Package
		created int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Credits, &p.ValidityDays, &p.PriceCents, &created); err != nil {
		return nil, translate(err)
	}
	p.CreatedAt = fromMS(created)
	return &p, nil
}

func scanUserPackage(row rowScanner) (*model.UserPackage, error) {
	var (
		up               model.UserPackage
		expires, created int64
	)
	if err := row.Scan(&up.ID, &up.MemberID, &up.PackageID, &up.CreditsTotal, &up.CreditsRemaining,
		&up.CreditsReserved, &up.CreditsConsumed, &expires, &created); err != nil {
		return nil, translate(err)
	}
	up.ExpiresAt = fromMS(expires)
	up.CreatedAt = fromMS(created)
	return &up, nil
}

func (t *sqlTx) InsertPackage(ctx context.Context, p *model.Package) error {
	const q = `INSERT INTO packages (name, credits, validity_days, price_cents, created_at) VALUES (?, ?, ?, ?, ?)`
	id, err := t.insert(ctx, q, p.Name, p.Credits, p.ValidityDays, p.PriceCents, toMS(p.CreatedAt))
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (t *sqlTx) GetPackage(ctx context.Context, id uint64) (*model.Package, error) {
	const q = `SELECT id, name, credits, validity_days, price_cents, created_at FROM packages WHERE id = ?`
	return scanPackage(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) ListPackages(ctx context.Context) ([]model.Package, error) {
	const q = `SELECT id, name, credits, validity_days, price_cents, created_at FROM packages ORDER BY id`
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []model.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, translate(rows.Err())
}

func (t *sqlTx) InsertUserPackage(ctx context.Context, up *model.UserPackage) error {
	const q = `INSERT INTO user_packages (member_id, package_id, credits_total, credits_remaining, credits_reserved, credits_consumed, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := t.insert(ctx, q, up.MemberID, up.PackageID, up.CreditsTotal, up.CreditsRemaining,
		up.CreditsReserved, up.CreditsConsumed, toMS(up.ExpiresAt), toMS(up.CreatedAt))
	if err != nil {
		return err
	}
	up.ID = id
	return nil
}

func (t *sqlTx) GetUserPackage(ctx context.Context, id uint64) (*model.UserPackage, error) {
	q := `SELECT ` + userPackageColumns + ` FROM user_packages WHERE id = ?`
	return scanUserPackage(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) LockUserPackage(ctx context.Context, id uint64) (*model.UserPackage, error) {
	q := `SELECT ` + userPackageColumns + ` FROM user_packages WHERE id = ?` + t.lock
	return scanUserPackage(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) UpdateUserPackageCredits(ctx context.Context, up *model.UserPackage) error {
	const q = `UPDATE user_packages SET credits_remaining = ?, credits_reserved = ?, credits_consumed = ? WHERE id = ?`
	return t.execOne(ctx, q, up.CreditsRemaining, up.CreditsReserved, up.CreditsConsumed, up.ID)
}

func (t *sqlTx) ListUserPackages(ctx context.Context, memberID uint64) ([]model.UserPackage, error) {
	q := `SELECT ` + userPackageColumns + ` FROM user_packages WHERE member_id = ? ORDER BY expires_at ASC, id ASC`
	rows, err := t.tx.QueryContext(ctx, q, memberID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	var out []model.UserPackage
	for rows.Next() {
		up, err := scanUserPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *up)
	}
	return out, translate(rows.Err())
}

func (t *sqlTx) GetCreditHold(ctx context.Context, bookingID uint64) (*model.CreditHold, error) {
	const q = `SELECT booking_id, user_package_id, state, updated_at FROM credit_holds WHERE booking_id = ?`
	var (
		h   model.CreditHold
		upd int64
	)
	if err := t.tx.QueryRowContext(ctx, q, bookingID).Scan(&h.BookingID, &h.UserPackageID, &h.State, &upd); err != nil {
		return nil, translate(err)
	}
	h.UpdatedAt = fromMS(upd)
	return &h, nil
}

// SaveCreditHold inserts the hold or overwrites the existing one for the
// same booking.
func (t *sqlTx) SaveCreditHold(ctx context.Context, h *model.CreditHold) error {
	_, err := t.GetCreditHold(ctx, h.BookingID)
	switch {
	case err == nil:
		const q = `UPDATE credit_holds SET user_package_id = ?, state = ?, updated_at = ? WHERE booking_id = ?`
		return t.execOne(ctx, q, h.UserPackageID, string(h.State), toMS(h.UpdatedAt), h.BookingID)
	case errors.Is(err, ErrNotFound):
		const q = `INSERT INTO credit_holds (booking_id, user_package_id, state, updated_at) VALUES (?, ?, ?, ?)`
		_, err := t.exec(ctx, q, h.BookingID, h.UserPackageID, string(h.State), toMS(h.UpdatedAt))
		return err
	default:
		return err
	}
}
