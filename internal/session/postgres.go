package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const (
	sqlCreateSessions = `
        CREATE TABLE IF NOT EXISTS fastwork_sessions (
            account  TEXT PRIMARY KEY,
            snapshot BYTEA NOT NULL,
            saved_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlSelectSession = `SELECT snapshot FROM fastwork_sessions WHERE account = $1`
	sqlUpsertSession = `
        INSERT INTO fastwork_sessions (account, snapshot, saved_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (account) DO UPDATE SET
            snapshot = EXCLUDED.snapshot,
            saved_at = EXCLUDED.saved_at;
    `
)

// PostgresStore keeps snapshots in a single table keyed by account.
type PostgresStore struct {
	pool    DBPool
	log     *zap.Logger
	ownPool bool
}

// NewPostgres wraps an existing pool, verifies the connection and creates the
// table if needed. The caller keeps ownership of the pool.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateSessions); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	return &PostgresStore{pool: pool, log: logger.Named("session.postgres")}, nil
}

// OpenPostgres dials dsn and returns a store that owns its pool.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.ownPool = true
	return s, nil
}

// Load fetches the snapshot for account.
func (s *PostgresStore) Load(ctx context.Context, account string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, sqlSelectSession, account).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return unwrap(raw, account, s.log)
}

// Save upserts the snapshot for account.
func (s *PostgresStore) Save(ctx context.Context, account string, state []byte) error {
	raw, snap, err := wrap(account, state)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sqlUpsertSession, account, raw, snap.SavedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.log.Debug("Session saved.", zap.String("account", account), zap.Int("bytes", len(state)))
	return nil
}

// Close releases the pool when the store opened it.
func (s *PostgresStore) Close() error {
	if s.ownPool {
		s.pool.Close()
	}
	return nil
}
