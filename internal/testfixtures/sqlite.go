package testfixtures

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/MateoPiedra22/GymSystem-sub000/internal/database"
	"github.com/MateoPiedra22/GymSystem-sub000/internal/repository"
)

// SQLiteHarness is a migrated SQLite database in a temporary directory.
// The wallet lives in a second file: SQLite connections are limited to
// one, and drop-in charges run while a booking transaction holds it.
type SQLiteHarness struct {
	DB       *sql.DB
	WalletDB *sql.DB
	Store    *repository.SQLStore
	Members  *repository.MemberRepo
	Wallets  *repository.WalletRepo
}

// NewSQLiteHarness opens and migrates fresh databases.  They are closed
// when the test ends.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()
	dir := tb.TempDir()
	ctx := context.Background()

	db := openSQLite(tb, filepath.Join(dir, "gym.db"))
	if err := database.Migrate(ctx, db, database.SQLite); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	walletDB := openSQLite(tb, filepath.Join(dir, "wallet.db"))
	if err := database.MigrateWallet(ctx, walletDB, database.SQLite); err != nil {
		tb.Fatalf("migrate wallet: %v", err)
	}

	return &SQLiteHarness{
		DB:       db,
		WalletDB: walletDB,
		Store:    repository.NewSQLStore(db, database.SQLite),
		Members:  repository.NewMemberRepo(db),
		Wallets:  repository.NewWalletRepo(walletDB, database.SQLite),
	}
}

func openSQLite(tb testing.TB, path string) *sql.DB {
	tb.Helper()
	db, err := database.OpenSQLite(path)
	if err != nil {
		tb.Fatalf("open sqlite %s: %v", path, err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}
