package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    account  TEXT PRIMARY KEY,
    snapshot BLOB NOT NULL,
    saved_at TEXT NOT NULL
);`
	sqliteSelect = `SELECT snapshot FROM sessions WHERE account = ?`
	sqliteUpsert = `
INSERT INTO sessions (account, snapshot, saved_at) VALUES (?, ?, ?)
ON CONFLICT(account) DO UPDATE SET snapshot = excluded.snapshot, saved_at = excluded.saved_at`
)

// SQLiteStore keeps snapshots in a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand sqlite path: %w", err)
	}

	db, err := sql.Open("sqlite", expanded)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger.Named("session.sqlite")}, nil
}

// Load fetches the snapshot for account.
func (s *SQLiteStore) Load(ctx context.Context, account string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, sqliteSelect, account).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return unwrap(raw, account, s.logger)
}

// Save upserts the snapshot for account.
func (s *SQLiteStore) Save(ctx context.Context, account string, state []byte) error {
	raw, snap, err := wrap(account, state)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteUpsert, account, raw, snap.SavedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.logger.Debug("Session saved.", zap.String("account", account), zap.Int("bytes", len(state)))
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
