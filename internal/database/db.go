package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL engine behind a *sql.DB.  Queries are written in
// the common subset of both engines; the dialect only changes row locking
// and schema DDL.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// LockClause returns the suffix that takes a row lock on SELECT.  SQLite
// serialises writers at transaction start instead.
func (d Dialect) LockClause() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// Open connects to MySQL and verifies the connection.  lockWait bounds how
// long a statement waits for a row lock before the server aborts it.
func Open(user, pass, host, port, name string, lockWait time.Duration) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	secs := int(lockWait / time.Second)
	if secs < 1 {
		secs = 1
	}
	// timestamps are stored as unix milliseconds, so no parseTime.
	// clientFoundRows makes RowsAffected count matched rows.
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&loc=UTC&clientFoundRows=true&innodb_lock_wait_timeout=%d",
		auth, host, port, name, secs)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.  Write
// transactions start IMMEDIATE so two writers never both read a session
// before either updates it.
func OpenSQLite(path string) (*sql.DB, error) {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection turns pool waits into the per-database lock
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
