package kvstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmerrifield20/lostfound/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// backends returns a fresh instance of every file-less or temp-file backend.
func backends(t *testing.T) map[string]kvstore.Store {
	t.Helper()
	dir := t.TempDir()

	bolt, err := kvstore.OpenBolt(filepath.Join(dir, "slots.db"))
	require.NoError(t, err)
	sqlite, err := kvstore.OpenSQLite(filepath.Join(dir, "slots.sqlite"))
	require.NoError(t, err)

	stores := map[string]kvstore.Store{
		"memory": kvstore.NewMemory(),
		"bolt":   bolt,
		"sqlite": sqlite,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStore_getMissingKey(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "ledger")
			assert.ErrorIs(t, err, kvstore.ErrNotFound)
		})
	}
}

func TestStore_putThenGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "ledger", []byte(`[{"timestamp":1}]`)))

			got, err := s.Get(ctx, "ledger")
			require.NoError(t, err)
			assert.Equal(t, `[{"timestamp":1}]`, string(got))
		})
	}
}

func TestStore_putOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "ledger", []byte("first value, longer")))
			require.NoError(t, s.Put(ctx, "ledger", []byte("second")))

			got, err := s.Get(ctx, "ledger")
			require.NoError(t, err)
			assert.Equal(t, "second", string(got))
		})
	}
}

func TestStore_keysAreIndependent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "a", []byte("1")))
			require.NoError(t, s.Put(ctx, "b", []byte("2")))

			a, err := s.Get(ctx, "a")
			require.NoError(t, err)
			b, err := s.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, "1", string(a))
			assert.Equal(t, "2", string(b))
		})
	}
}

func TestStore_emptyKeyRejected(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Put(ctx, " ", []byte("x")))
			_, err := s.Get(ctx, "")
			assert.Error(t, err)
			assert.False(t, errors.Is(err, kvstore.ErrNotFound))
		})
	}
}

func TestMemory_returnsCopies(t *testing.T) {
	m := kvstore.NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", buf))
	buf[0] = 'X'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'Y'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestMemory_failPuts(t *testing.T) {
	m := kvstore.NewMemory()
	require.NoError(t, m.Put(ctx, "k", []byte("v1")))

	boom := errors.New("quota exceeded")
	m.FailPuts(boom)
	assert.ErrorIs(t, m.Put(ctx, "k", []byte("v2")), boom)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
	assert.Equal(t, 2, m.Puts())

	m.FailPuts(nil)
	assert.NoError(t, m.Put(ctx, "k", []byte("v3")))
}

func TestMemory_cancelledContext(t *testing.T) {
	m := kvstore.NewMemory()
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, m.Put(cctx, "k", []byte("v")), context.Canceled)
}

func TestBolt_persistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slots.db")

	b, err := kvstore.OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "ledger", []byte("chain")))
	require.NoError(t, b.Close())

	b, err = kvstore.OpenBolt(path)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Get(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, "chain", string(got))
}

func TestSQLite_persistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.sqlite")

	s, err := kvstore.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "ledger", []byte("chain")))
	require.NoError(t, s.Close())

	s, err = kvstore.OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, "chain", string(got))
}

func TestSQLite_inMemory(t *testing.T) {
	s, err := kvstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "ledger", []byte("x")))
	got, err := s.Get(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestOpen_drivers(t *testing.T) {
	dir := t.TempDir()

	for _, cfg := range []kvstore.Config{
		{Driver: "memory"},
		{Driver: "bolt", Path: filepath.Join(dir, "a.db")},
		{Driver: "", Path: filepath.Join(dir, "b.db")},
		{Driver: "SQLite", Path: filepath.Join(dir, "c.sqlite")},
	} {
		s, err := kvstore.Open(ctx, cfg)
		require.NoError(t, err, "driver %q", cfg.Driver)
		require.NoError(t, s.Close())
	}

	_, err := kvstore.Open(ctx, kvstore.Config{Driver: "redis"})
	assert.Error(t, err)

	_, err = kvstore.Open(ctx, kvstore.Config{Driver: "bolt"})
	assert.Error(t, err, "bolt without a path")

	_, err = kvstore.Open(ctx, kvstore.Config{Driver: "postgres"})
	assert.Error(t, err, "postgres without a dsn")
}
