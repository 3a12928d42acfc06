package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/database"
)

// SQLStore implements Store on top of database/sql.  On MySQL every
// per-session and per-package critical section takes a row lock with
// SELECT ... FOR UPDATE; on SQLite transactions begin IMMEDIATE, which
// serialises writers for the whole file.
type SQLStore struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLStore returns a Store bound to db.
func NewSQLStore(db *sql.DB, dialect database.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Atomic runs fn inside a database transaction.  The transaction is
// rolled back when fn fails, when commit fails, or when ctx is cancelled
// before commit.
func (s *SQLStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlTx{tx: tx, lock: s.dialect.LockClause()}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// sqlTx implements Tx.  Its methods are spread over the per-entity
// *_repository.go files.
type sqlTx struct {
	tx   *sql.Tx
	lock string
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (t *sqlTx) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, q, args...)
	return res, translate(err)
}

// insert runs an INSERT and returns the generated id.
func (t *sqlTx) insert(ctx context.Context, q string, args ...any) (uint64, error) {
	res, err := t.exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// execOne runs an UPDATE that must touch exactly one row.
func (t *sqlTx) execOne(ctx context.Context, q string, args ...any) error {
	res, err := t.exec(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func toMS(t time.Time) int64 { return t.UnixMilli() }

func fromMS(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMS(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func ptrMS(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMS(v.Int64)
	return &t
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
