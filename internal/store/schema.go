// Package store provides the SQLite-backed World Store for dreams, locations,
// entities, transits and the changelog.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/dreamland/internal/apperr"
)

// Foreign keys carry no ON DELETE actions: cascades are explicit statements
// inside the delete/merge transactions.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS dreams (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	date       DATETIME NOT NULL,
	cycle      INTEGER NOT NULL DEFAULT 1 CHECK (cycle >= 1),
	content    TEXT NOT NULL,
	language   TEXT NOT NULL DEFAULT 'en',
	processed  BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dreams_date ON dreams(date);

CREATE TABLE IF NOT EXISTS locations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	name_key    TEXT NOT NULL UNIQUE,
	archetype   TEXT NOT NULL DEFAULT '',
	layer       INTEGER NOT NULL DEFAULT 0 CHECK (layer IN (-1, 0, 1)),
	x           REAL NOT NULL DEFAULT 0 CHECK (x BETWEEN -1 AND 1),
	y           REAL NOT NULL DEFAULT 0 CHECK (y BETWEEN -1 AND 1),
	symbol      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '#3b82f6',
	frequency   INTEGER NOT NULL DEFAULT 1 CHECK (frequency >= 1),
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_locations_layer ON locations(layer);

CREATE TABLE IF NOT EXISTS entities (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	name_key    TEXT NOT NULL UNIQUE,
	type        TEXT NOT NULL CHECK (type IN ('person', 'being', 'animal', 'abstract', 'object')),
	description TEXT NOT NULL DEFAULT '',
	symbol      TEXT NOT NULL DEFAULT '',
	confidence  REAL NOT NULL DEFAULT 1 CHECK (confidence BETWEEN 0 AND 1),
	location_id INTEGER REFERENCES locations(id),
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_location ON entities(location_id);

CREATE TABLE IF NOT EXISTS dream_locations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	dream_id    INTEGER NOT NULL REFERENCES dreams(id),
	location_id INTEGER NOT NULL REFERENCES locations(id),
	ord         INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_dream_locations_dream ON dream_locations(dream_id);
CREATE INDEX IF NOT EXISTS idx_dream_locations_location ON dream_locations(location_id);

CREATE TABLE IF NOT EXISTS dream_entities (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	dream_id  INTEGER NOT NULL REFERENCES dreams(id),
	entity_id INTEGER NOT NULL REFERENCES entities(id)
);

CREATE INDEX IF NOT EXISTS idx_dream_entities_dream ON dream_entities(dream_id);

CREATE TABLE IF NOT EXISTS transits (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	dream_id         INTEGER NOT NULL REFERENCES dreams(id),
	from_location_id INTEGER NOT NULL REFERENCES locations(id),
	to_location_id   INTEGER NOT NULL REFERENCES locations(id),
	trigger          TEXT NOT NULL DEFAULT '',
	confidence       REAL NOT NULL DEFAULT 1 CHECK (confidence BETWEEN 0 AND 1),
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transits_from ON transits(from_location_id);
CREATE INDEX IF NOT EXISTS idx_transits_to ON transits(to_location_id);

CREATE TABLE IF NOT EXISTS changelog (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   INTEGER NOT NULL,
	old_data    TEXT,
	new_data    TEXT,
	merged_from TEXT,
	split_into  TEXT,
	user_note   TEXT NOT NULL DEFAULT '',
	timestamp   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changelog_subject ON changelog(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS journal_imports (
	checksum    TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	dream_id    INTEGER NOT NULL,
	imported_at DATETIME NOT NULL
);
`

// DB wraps a sql.DB with World Store operations.
type DB struct {
	repo
	conn *sql.DB
}

// Tx is a World Store transaction. Operations that touch several tables
// (cascading deletes, re-pointing) exist only on Tx.
type Tx struct {
	repo
	tx *sql.Tx
}

// Open opens (or creates) the SQLite database and applies the schema.
//
// Transactions begin IMMEDIATE so the write lock is held from the first
// statement: read-modify-write sequences inside InTx see a consistent snapshot.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{repo: repo{q: conn}, conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise, leaving the store as it was.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Tx{repo: repo{q: sqlTx}, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

// wrapErr translates driver errors into apperr kinds.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: %s: %w", op, apperr.ErrNotFound)
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("store: %s: %w", op, apperr.ErrConflict)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
