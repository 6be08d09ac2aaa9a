package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/doctors-appointment/internal/config"
)

// The bookings unique key is what rejects a second booking of the same
// treatment on the same date by the same email.  Columns of bookings are
// nullable because an upsert-on-miss payment may create a bare row.
//
// Tables whose strings are joined or deduplicated use utf8mb4_bin so MySQL
// compares them byte for byte, the same way SQLite and the availability
// engine do.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS treatments (
		id          VARCHAR(36)  NOT NULL PRIMARY KEY,
		name        VARCHAR(128) NOT NULL,
		price_cents BIGINT       NOT NULL DEFAULT 0,
		created_at  TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_treatments_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS treatment_slots (
		treatment_id VARCHAR(36) NOT NULL,
		slot_order   INT         NOT NULL,
		label        VARCHAR(64) NOT NULL,
		PRIMARY KEY (treatment_id, slot_order),
		CONSTRAINT fk_slots_treatment FOREIGN KEY (treatment_id) REFERENCES treatments (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id               VARCHAR(36)  NOT NULL PRIMARY KEY,
		treatment_name   VARCHAR(128) NULL,
		appointment_date VARCHAR(32)  NULL,
		slot             VARCHAR(64)  NULL,
		patient          VARCHAR(128) NULL,
		email            VARCHAR(255) NULL,
		phone            VARCHAR(32)  NULL,
		price_cents      BIGINT       NULL,
		paid             TINYINT(1)   NOT NULL DEFAULT 0,
		created_at       TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_bookings_treatment_date_email (treatment_name, appointment_date, email),
		KEY idx_bookings_date (appointment_date),
		KEY idx_bookings_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS users (
		id         VARCHAR(36)  NOT NULL PRIMARY KEY,
		name       VARCHAR(128) NULL,
		email      VARCHAR(255) NULL,
		role       VARCHAR(16)  NOT NULL DEFAULT '',
		created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id         VARCHAR(36)  NOT NULL PRIMARY KEY,
		name       VARCHAR(128) NOT NULL,
		email      VARCHAR(255) NOT NULL,
		specialty  VARCHAR(128) NOT NULL,
		image      VARCHAR(512) NOT NULL DEFAULT '',
		created_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             VARCHAR(36)  NOT NULL PRIMARY KEY,
		booking_id     VARCHAR(36)  NOT NULL,
		amount_cents   BIGINT       NOT NULL,
		currency       VARCHAR(8)   NOT NULL,
		transaction_id VARCHAR(128) NOT NULL,
		email          VARCHAR(255) NOT NULL DEFAULT '',
		created_at     TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_payments_booking (booking_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS treatments (
		id          TEXT    NOT NULL PRIMARY KEY,
		name        TEXT    NOT NULL UNIQUE,
		price_cents INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS treatment_slots (
		treatment_id TEXT    NOT NULL REFERENCES treatments (id) ON DELETE CASCADE,
		slot_order   INTEGER NOT NULL,
		label        TEXT    NOT NULL,
		PRIMARY KEY (treatment_id, slot_order)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id               TEXT    NOT NULL PRIMARY KEY,
		treatment_name   TEXT    NULL,
		appointment_date TEXT    NULL,
		slot             TEXT    NULL,
		patient          TEXT    NULL,
		email            TEXT    NULL,
		phone            TEXT    NULL,
		price_cents      INTEGER NULL,
		paid             INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (treatment_name, appointment_date, email)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings (appointment_date)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_email ON bookings (email)`,
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT NOT NULL PRIMARY KEY,
		name       TEXT NULL,
		email      TEXT NULL UNIQUE,
		role       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id         TEXT NOT NULL PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL,
		specialty  TEXT NOT NULL,
		image      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id             TEXT    NOT NULL PRIMARY KEY,
		booking_id     TEXT    NOT NULL,
		amount_cents   INTEGER NOT NULL,
		currency       TEXT    NOT NULL,
		transaction_id TEXT    NOT NULL,
		email          TEXT    NOT NULL DEFAULT '',
		created_at     TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_booking ON payments (booking_id)`,
}

// Migrate creates any missing tables for the given driver.  Statements are
// idempotent, so running it on every start is safe.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case config.DriverMySQL:
		stmts = mysqlSchema
	case config.DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported driver %q", driver)
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
