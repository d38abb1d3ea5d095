package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    email         TEXT NOT NULL DEFAULT '',
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'worker' CHECK (role IN ('admin', 'worker')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id                INTEGER PRIMARY KEY,
    name              TEXT NOT NULL,
    total_quantity    INTEGER NOT NULL DEFAULT 0 CHECK (total_quantity >= 0),
    reserved_quantity INTEGER NOT NULL DEFAULT 0 CHECK (reserved_quantity >= 0),
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at        DATETIME,
    CHECK (reserved_quantity <= total_quantity)
);

CREATE TABLE IF NOT EXISTS assignments (
    id                INTEGER PRIMARY KEY,
    worker_id         INTEGER NOT NULL REFERENCES users(id),
    item_id           INTEGER NOT NULL REFERENCES items(id),
    assigned_quantity INTEGER NOT NULL DEFAULT 0 CHECK (assigned_quantity >= 0),
    updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (worker_id, item_id)
);

CREATE TABLE IF NOT EXISTS usage_logs (
    id            INTEGER PRIMARY KEY,
    worker_id     INTEGER NOT NULL REFERENCES users(id),
    item_id       INTEGER NOT NULL REFERENCES items(id),
    quantity_used INTEGER NOT NULL CHECK (quantity_used > 0),
    photo_ref     TEXT NOT NULL,
    is_approved   INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    approved_at   DATETIME,
    approved_by   INTEGER REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_usage_logs_pending ON usage_logs(is_approved, created_at);

CREATE TABLE IF NOT EXISTS shipments (
    id                INTEGER PRIMARY KEY,
    worker_id         INTEGER NOT NULL REFERENCES users(id),
    status            TEXT NOT NULL DEFAULT 'pending'
                      CHECK (status IN ('pending', 'sent', 'received', 'approved', 'rejected')),
    created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_by        INTEGER REFERENCES users(id),
    sent_at           DATETIME,
    received_at       DATETIME,
    received_quantity INTEGER,
    received_photo    TEXT,
    approved_at       DATETIME,
    rejected_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_shipments_status ON shipments(status);

CREATE TABLE IF NOT EXISTS shipment_lines (
    id          INTEGER PRIMARY KEY,
    shipment_id INTEGER NOT NULL REFERENCES shipments(id),
    item_id     INTEGER NOT NULL REFERENCES items(id),
    quantity    INTEGER NOT NULL CHECK (quantity > 0)
);

CREATE TABLE IF NOT EXISTS worker_locations (
    id          INTEGER PRIMARY KEY,
    worker_id   INTEGER NOT NULL REFERENCES users(id),
    latitude    TEXT NOT NULL,
    longitude   TEXT NOT NULL,
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_worker_locations_worker
    ON worker_locations(worker_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS stock_movements (
    id             INTEGER PRIMARY KEY,
    item_id        INTEGER NOT NULL REFERENCES items(id),
    worker_id      INTEGER REFERENCES users(id),
    reason         TEXT NOT NULL,
    stock_delta    INTEGER NOT NULL DEFAULT 0,
    reserved_delta INTEGER NOT NULL DEFAULT 0,
    assigned_delta INTEGER NOT NULL DEFAULT 0,
    ref_id         INTEGER,
    created_by     INTEGER REFERENCES users(id),
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS photos (
    ref        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_item ON stock_movements(item_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_worker ON stock_movements(worker_id, created_at)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
