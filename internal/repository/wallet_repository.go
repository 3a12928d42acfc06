package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/database"
)

// ErrInsufficientFunds is returned when a wallet cannot cover a charge.
var ErrInsufficientFunds = errors.New("insufficient funds")

// WalletRepo charges drop-in fees against prepaid member wallets.  Each
// charge carries an idempotency key so a retried booking never charges
// twice.
type WalletRepo struct {
	db   *sql.DB
	lock string
}

func NewWalletRepo(db *sql.DB, dialect database.Dialect) *WalletRepo {
	return &WalletRepo{db: db, lock: dialect.LockClause()}
}

// ChargeDropinFee debits amountCents from the member's wallet and returns
// the charge reference.  A repeated key returns the original reference.
func (r *WalletRepo) ChargeDropinFee(ctx context.Context, memberID uint64, amountCents uint32, key string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var ref string
	err = tx.QueryRowContext(ctx, "SELECT ref FROM wallet_charges WHERE idempotency_key=?", key).Scan(&ref)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", translate(err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx, "SELECT balance_cents FROM member_wallets WHERE member_id=?"+r.lock, memberID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInsufficientFunds
	}
	if err != nil {
		return "", translate(err)
	}
	if balance < int64(amountCents) {
		return "", ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, "UPDATE member_wallets SET balance_cents = balance_cents - ? WHERE member_id=?", amountCents, memberID); err != nil {
		return "", translate(err)
	}
	ref = uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO wallet_charges (ref, member_id, amount_cents, idempotency_key, refunded, created_at) VALUES (?,?,?,?,0,?)",
		ref, memberID, amountCents, key, toMS(time.Now())); err != nil {
		return "", translate(err)
	}
	if err := tx.Commit(); err != nil {
		return "", translate(err)
	}
	committed = true
	return ref, nil
}

// RefundDropinFee credits a charge back to the wallet.  Refunding twice
// is a no-op.
func (r *WalletRepo) RefundDropinFee(ctx context.Context, ref string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		memberID uint64
		amount   int64
		refunded bool
	)
	err = tx.QueryRowContext(ctx, "SELECT member_id, amount_cents, refunded FROM wallet_charges WHERE ref=?"+r.lock, ref).
		Scan(&memberID, &amount, &refunded)
	if err != nil {
		return translate(err)
	}
	if refunded {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "UPDATE wallet_charges SET refunded=1 WHERE ref=?", ref); err != nil {
		return translate(err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE member_wallets SET balance_cents = balance_cents + ? WHERE member_id=?", amount, memberID); err != nil {
		return translate(err)
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// TopUp adds funds to a member wallet, creating it on first use.
func (r *WalletRepo) TopUp(ctx context.Context, memberID uint64, amountCents int64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE member_wallets SET balance_cents = balance_cents + ? WHERE member_id=?", amountCents, memberID)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, "INSERT INTO member_wallets (member_id, balance_cents) VALUES (?,?)", memberID, amountCents)
	return translate(err)
}

// Balance returns the wallet balance, zero for members without a wallet.
func (r *WalletRepo) Balance(ctx context.Context, memberID uint64) (int64, error) {
	var b int64
	err := r.db.QueryRowContext(ctx, "SELECT balance_cents FROM member_wallets WHERE member_id=?", memberID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return b, translate(err)
}
