package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type index struct {
	name    string
	columns string
	unique  bool
}

type table struct {
	name    string
	columns []string
	indexes []index
}

// Column type placeholders expanded per dialect.
//   $ID   auto-increment primary key
//   $STR  short string
//   $TEXT long text
var tables = []table{
	{
		name: "catalog_entries",
		columns: []string{
			"id $ID",
			"name $STR NOT NULL",
			"category $STR NOT NULL",
			"difficulty $STR NOT NULL",
			"default_duration_ms BIGINT NOT NULL",
			"base_price_cents BIGINT NOT NULL DEFAULT 0",
			"active TINYINT NOT NULL DEFAULT 1",
			"rating_sum BIGINT NOT NULL DEFAULT 0",
			"rating_count BIGINT NOT NULL DEFAULT 0",
			"created_at BIGINT NOT NULL",
			"updated_at BIGINT NOT NULL",
		},
	},
	{
		name: "class_sessions",
		columns: []string{
			"id $ID",
			"catalog_id BIGINT NOT NULL",
			"instructor_id BIGINT NOT NULL",
			"room $STR NOT NULL",
			"starts_at BIGINT NOT NULL",
			"duration_ms BIGINT NOT NULL",
			"capacity INT NOT NULL",
			"confirmed_count INT NOT NULL DEFAULT 0",
			"waitlist_count INT NOT NULL DEFAULT 0",
			"next_sequence BIGINT NOT NULL DEFAULT 0",
			"status $STR NOT NULL",
			"cancel_reason $TEXT NOT NULL",
			"price_cents BIGINT NOT NULL DEFAULT 0",
			"rating_sum BIGINT NOT NULL DEFAULT 0",
			"rating_count BIGINT NOT NULL DEFAULT 0",
			"created_at BIGINT NOT NULL",
			"updated_at BIGINT NOT NULL",
		},
		indexes: []index{
			{name: "idx_sessions_starts", columns: "starts_at"},
			{name: "idx_sessions_room", columns: "room, starts_at"},
			{name: "idx_sessions_status", columns: "status, starts_at"},
		},
	},
	{
		name: "bookings",
		columns: []string{
			"id $ID",
			"session_id BIGINT NOT NULL",
			"member_id BIGINT NOT NULL",
			"state $STR NOT NULL",
			"sequence BIGINT NOT NULL",
			"pay_with $STR NOT NULL",
			"user_package_id BIGINT NOT NULL DEFAULT 0",
			"charge_ref $STR NOT NULL",
			"cancel_reason $TEXT NOT NULL",
			"refund_requested TINYINT NOT NULL DEFAULT 0",
			"created_at BIGINT NOT NULL",
			"updated_at BIGINT NOT NULL",
			"cancelled_at BIGINT NULL",
		},
		indexes: []index{
			{name: "uq_bookings_session_seq", columns: "session_id, sequence", unique: true},
			{name: "idx_bookings_member", columns: "member_id, session_id"},
		},
	},
	{
		name: "packages",
		columns: []string{
			"id $ID",
			"name $STR NOT NULL",
			"credits INT NOT NULL",
			"validity_days INT NOT NULL",
			"price_cents BIGINT NOT NULL DEFAULT 0",
			"created_at BIGINT NOT NULL",
		},
	},
	{
		name: "user_packages",
		columns: []string{
			"id $ID",
			"member_id BIGINT NOT NULL",
			"package_id BIGINT NOT NULL",
			"credits_total INT NOT NULL",
			"credits_remaining INT NOT NULL",
			"credits_reserved INT NOT NULL DEFAULT 0",
			"credits_consumed INT NOT NULL DEFAULT 0",
			"expires_at BIGINT NOT NULL",
			"created_at BIGINT NOT NULL",
			"CHECK (credits_remaining >= 0)",
		},
		indexes: []index{
			{name: "idx_user_packages_member", columns: "member_id, expires_at"},
		},
	},
	{
		name: "credit_holds",
		columns: []string{
			"booking_id BIGINT NOT NULL PRIMARY KEY",
			"user_package_id BIGINT NOT NULL",
			"state $STR NOT NULL",
			"updated_at BIGINT NOT NULL",
		},
	},
	{
		name: "attendance",
		columns: []string{
			"booking_id BIGINT NOT NULL PRIMARY KEY",
			"session_id BIGINT NOT NULL",
			"member_id BIGINT NOT NULL",
			"outcome $STR NOT NULL",
			"checked_in_at BIGINT NULL",
			"recorded_at BIGINT NOT NULL",
		},
		indexes: []index{
			{name: "idx_attendance_session", columns: "session_id"},
		},
	},
	{
		name: "ratings",
		columns: []string{
			"id $ID",
			"session_id BIGINT NOT NULL",
			"catalog_id BIGINT NOT NULL",
			"member_id BIGINT NOT NULL",
			"score INT NOT NULL",
			"comment $TEXT NOT NULL",
			"created_at BIGINT NOT NULL",
			"updated_at BIGINT NOT NULL",
		},
		indexes: []index{
			{name: "uq_ratings_session_member", columns: "session_id, member_id", unique: true},
		},
	},
	{
		name: "members",
		columns: []string{
			"id BIGINT NOT NULL PRIMARY KEY",
			"status $STR NOT NULL",
			"display_name $STR NOT NULL",
			"created_at BIGINT NOT NULL",
		},
	},
}

// walletTables live in the payment database, which may be a separate file
// in SQLite mode.
var walletTables = []table{
	{
		name: "member_wallets",
		columns: []string{
			"member_id BIGINT NOT NULL PRIMARY KEY",
			"balance_cents BIGINT NOT NULL DEFAULT 0",
		},
	},
	{
		name: "wallet_charges",
		columns: []string{
			"ref $STR NOT NULL PRIMARY KEY",
			"member_id BIGINT NOT NULL",
			"amount_cents BIGINT NOT NULL",
			"idempotency_key $STR NOT NULL",
			"refunded TINYINT NOT NULL DEFAULT 0",
			"created_at BIGINT NOT NULL",
		},
		indexes: []index{
			{name: "uq_wallet_charges_key", columns: "idempotency_key", unique: true},
		},
	},
}

// Migrate creates the scheduling tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	return migrate(ctx, db, d, tables)
}

// MigrateWallet creates the drop-in wallet tables.
func MigrateWallet(ctx context.Context, db *sql.DB, d Dialect) error {
	return migrate(ctx, db, d, walletTables)
}

func migrate(ctx context.Context, db *sql.DB, d Dialect, ts []table) error {
	for _, t := range ts {
		for _, stmt := range t.ddl(d) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate %s: %w", t.name, err)
			}
		}
	}
	return nil
}

func (t table) ddl(d Dialect) []string {
	var r *strings.Replacer
	if d == MySQL {
		r = strings.NewReplacer(
			"$ID", "BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY",
			"$STR", "VARCHAR(191)",
			"$TEXT", "VARCHAR(1024)",
		)
	} else {
		r = strings.NewReplacer(
			"$ID", "INTEGER PRIMARY KEY AUTOINCREMENT",
			"$STR", "TEXT",
			"$TEXT", "TEXT",
		)
	}

	cols := make([]string, 0, len(t.columns)+len(t.indexes))
	for _, c := range t.columns {
		cols = append(cols, r.Replace(c))
	}
	var extra []string
	for _, ix := range t.indexes {
		if d == MySQL {
			kind := "INDEX"
			if ix.unique {
				kind = "UNIQUE INDEX"
			}
			cols = append(cols, fmt.Sprintf("%s %s (%s)", kind, ix.name, ix.columns))
			continue
		}
		kind := "INDEX"
		if ix.unique {
			kind = "UNIQUE INDEX"
		}
		extra = append(extra, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, ix.name, t.name, ix.columns))
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", t.name, strings.Join(cols, ",\n  "))
	if d == MySQL {
		create += " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	return append([]string{create}, extra...)
}
