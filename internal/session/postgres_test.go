package session

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateSessions)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	store, err := NewPostgres(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return store, mockPool
}

func TestNewPostgres(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgres(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should create the sessions table", func(t *testing.T) {
		_, mockPool := newMockStore(t)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresSave(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertSession)).
		WithArgs("seller-a", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), "seller-a", blob))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresSaveError(t *testing.T) {
	store, mockPool := newMockStore(t)

	dbErr := errors.New("connection reset")
	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertSession)).
		WithArgs("seller-a", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(dbErr)

	err := store.Save(context.Background(), "seller-a", blob)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the stored blob", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		raw, err := NewSnapshot("seller-a", blob, time.Now()).Encode()
		require.NoError(t, err)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSession)).
			WithArgs("seller-a").
			WillReturnRows(pgxmock.NewRows([]string{"snapshot"}).AddRow(raw))

		got, err := store.Load(ctx, "seller-a")
		require.NoError(t, err)
		assert.Equal(t, blob, got)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSession)).
			WithArgs("seller-a").
			WillReturnRows(pgxmock.NewRows([]string{"snapshot"}))

		_, err := store.Load(ctx, "seller-a")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("snapshot for another account is discarded", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		store, mockPool := newMockStore(t)
		store.log = zap.New(core)

		raw, err := NewSnapshot("seller-b", blob, time.Now()).Encode()
		require.NoError(t, err)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSession)).
			WithArgs("seller-a").
			WillReturnRows(pgxmock.NewRows([]string{"snapshot"}).AddRow(raw))

		_, err = store.Load(ctx, "seller-a")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, logs.Len())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("query error is surfaced", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		dbErr := errors.New("relation does not exist")
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectSession)).
			WithArgs("seller-a").
			WillReturnError(dbErr)

		_, err := store.Load(ctx, "seller-a")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}
