// internal/intent/store.go
package intent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store holds at most one staged intent.
type Store interface {
	// Stage replaces any staged intent with payload.
	Stage(ctx context.Context, payload Payload) error
	// Claim removes and returns the staged intent in one step. ok is false when nothing
	// was staged. Two concurrent claims never both see the same intent.
	Claim(ctx context.Context) (staged Staged, ok bool, err error)
}

// Staged is a claimed intent as it was stored. Raw is validated only after the claim.
type Staged struct {
	Raw      json.RawMessage
	StagedAt time.Time
}

const schema = `CREATE TABLE IF NOT EXISTS deferred_intent (
	slot      INTEGER PRIMARY KEY CHECK (slot = 1),
	payload   TEXT    NOT NULL,
	staged_at INTEGER NOT NULL
)`

// SQLiteStore is a Store backed by a single-row SQLite table.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the store at path. ":memory:" gives a
// private in-memory store.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open intent store: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create intent table: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stage implements Store.
func (s *SQLiteStore) Stage(ctx context.Context, payload Payload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	query := `INSERT INTO deferred_intent (slot, payload, staged_at) VALUES (1, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET payload = excluded.payload, staged_at = excluded.staged_at`
	if _, err := s.db.ExecContext(ctx, query, string(raw), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to stage intent: %w", err)
	}
	return nil
}

// Claim implements Store.
func (s *SQLiteStore) Claim(ctx context.Context) (Staged, bool, error) {
	var row struct {
		Payload  string `db:"payload"`
		StagedAt int64  `db:"staged_at"`
	}
	query := `DELETE FROM deferred_intent WHERE slot = 1 RETURNING payload, staged_at`
	err := s.db.GetContext(ctx, &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return Staged{}, false, nil
	}
	if err != nil {
		return Staged{}, false, fmt.Errorf("failed to claim intent: %w", err)
	}
	return Staged{
		Raw:      json.RawMessage(row.Payload),
		StagedAt: time.UnixMilli(row.StagedAt).UTC(),
	}, true, nil
}
