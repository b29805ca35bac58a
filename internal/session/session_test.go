package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/fastwork-cli/internal/config"
)

var blob = []byte(`{"version":1,"cookies":[{"name":"sid","value":"abc","domain":".fastwork.id","path":"/"}]}`)

func TestSnapshotVerify(t *testing.T) {
	snap := NewSnapshot("seller-a", blob, time.Now())
	require.NoError(t, snap.Verify("seller-a"))

	t.Run("wrong account", func(t *testing.T) {
		assert.ErrorContains(t, snap.Verify("seller-b"), "belongs to account")
	})

	t.Run("tampered data", func(t *testing.T) {
		cp := *snap
		cp.Data = append([]byte(nil), blob...)
		cp.Data[5] = 'X'
		assert.ErrorContains(t, cp.Verify("seller-a"), "checksum mismatch")
	})

	t.Run("future version", func(t *testing.T) {
		cp := *snap
		cp.Version = SnapshotVersion + 1
		assert.ErrorContains(t, cp.Verify("seller-a"), "unsupported snapshot version")
	})

	t.Run("empty data", func(t *testing.T) {
		cp := *snap
		cp.Data = nil
		cp.Checksum = checksum(nil)
		assert.Error(t, cp.Verify("seller-a"))
	})
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state", "session.json"), nil)
	require.NoError(t, err)

	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound, "first run has no snapshot")

	require.NoError(t, store.Save(ctx, "", blob))
	got, err := store.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	info, err := os.Stat(store.PathFor(""))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(store.PathFor("")))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	updated := []byte(`{"version":1,"cookies":[]}`)
	require.NoError(t, store.Save(ctx, "", updated))
	got, err = store.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestFileStorePerAccountPaths(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "session.json"), nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "session.json"), store.PathFor(""))
	assert.Equal(t, filepath.Join(dir, "session.seller_example.com.json"), store.PathFor("seller@example.com"))
	assert.Equal(t, filepath.Join(dir, "session.a_b.json"), store.PathFor("a/b"))

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "one", []byte("state-one")))
	require.NoError(t, store.Save(ctx, "two", []byte("state-two")))

	one, err := store.Load(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, "state-one", string(one))
	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreTreatsDefectsAsAbsent(t *testing.T) {
	ctx := context.Background()

	good, err := NewSnapshot("", blob, time.Now()).Encode()
	require.NoError(t, err)
	var tampered map[string]interface{}
	require.NoError(t, json.Unmarshal(good, &tampered))
	tampered["checksum"] = strings.Repeat("0", 64)
	tamperedRaw, err := json.Marshal(tampered)
	require.NoError(t, err)

	cases := map[string][]byte{
		"truncated": good[:len(good)/2],
		"not json":  []byte("cookies=abc"),
		"tampered":  tamperedRaw,
		"empty":     {},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			path := filepath.Join(t.TempDir(), "session.json")
			require.NoError(t, os.WriteFile(path, raw, 0o600))

			store, err := NewFileStore(path, zap.New(core))
			require.NoError(t, err)
			got, err := store.Load(ctx, "")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Nil(t, got)
			assert.Equal(t, 1, logs.FilterMessage("Discarding unusable session snapshot.").Len())
		})
	}
}

func TestFileStoreRejectsEmptyState(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "session.json"), nil)
	require.NoError(t, err)
	assert.Error(t, store.Save(context.Background(), "", nil))
	_, err = os.Stat(store.PathFor(""))
	assert.True(t, os.IsNotExist(err))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)

	_, err = store.Load(ctx, "seller-a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "seller-a", blob))
	require.NoError(t, store.Save(ctx, "seller-a", []byte("newer")))
	require.NoError(t, store.Save(ctx, "seller-b", blob))

	got, err := store.Load(ctx, "seller-a")
	require.NoError(t, err)
	assert.Equal(t, "newer", string(got))

	_, err = store.db.ExecContext(ctx, `UPDATE sessions SET snapshot = ? WHERE account = ?`, []byte("{garbage"), "seller-b")
	require.NoError(t, err)
	_, err = store.Load(ctx, "seller-b")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err = reopened.Load(ctx, "seller-a")
	require.NoError(t, err)
	assert.Equal(t, "newer", string(got))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.SessionConfig{Backend: "file", File: filepath.Join(dir, "s.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, config.SessionConfig{Backend: "sqlite", DSN: filepath.Join(dir, "s.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.SessionConfig{Backend: "redis"}, nil)
	assert.ErrorContains(t, err, "unknown session backend")

	_, err = Open(ctx, config.SessionConfig{Backend: "postgres"}, nil)
	assert.ErrorContains(t, err, "session.dsn is required")
}
