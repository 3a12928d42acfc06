// Package repository holds the storage layer of the scheduling service.
// The sentinel values below are shared by every Store implementation so
// the service layer can distinguish failure modes without knowing which
// engine produced them.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint,
// such as a second attendance record for the same booking.
var ErrConflict = errors.New("conflict")

// ErrBusy is returned when a row lock could not be acquired in time or
// the engine aborted the transaction to break a deadlock.  Callers may
// retry.
var ErrBusy = errors.New("busy")

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// translate maps driver errors onto the sentinels above.  Errors it does
// not recognise are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return errors.Join(ErrConflict, err)
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return errors.Join(ErrBusy, err)
		}
		return err
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return errors.Join(ErrConflict, err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return errors.Join(ErrBusy, err)
		}
	}
	return err
}
