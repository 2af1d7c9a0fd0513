package lstore

import (
	"context"
	"errors"
	"testing"

	"github.com/mediamanager/mstore/lib/db"
	"github.com/mediamanager/mstore/lib/db/engines"
	"github.com/mediamanager/mstore/lib/db/engines/memory"
	"github.com/mediamanager/mstore/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, database db.KVDB) *Store {
	s, err := NewWithDB(database)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memory.NewVolatile())

	_, ok, err := s.Get(ctx, "media/a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "media/a", `{"title":"a"}`))

	v, ok, err := s.Get(ctx, "media/a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"title":"a"}`, v)

	has, err := s.Has(ctx, "media/a")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.Remove(ctx, "media/a"))
	has, err = s.Has(ctx, "media/a")
	require.NoError(t, err)
	assert.False(t, has)

	// removing twice is fine
	require.NoError(t, s.Remove(ctx, "media/a"))
	assert.Equal(t, uint64(3), s.Writes())
}

func TestRangeSorted(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, memory.NewVolatile())

	for _, k := range []string{"media/c", "docs/x", "media/a", "media/b"} {
		require.NoError(t, s.Set(ctx, k, k))
	}

	var keys []string
	require.NoError(t, s.Range(ctx, func(key, value string) bool {
		assert.Equal(t, key, value)
		keys = append(keys, key)
		return true
	}))
	assert.Equal(t, []string{"docs/x", "media/a", "media/b", "media/c"}, keys)

	keys = nil
	require.NoError(t, s.Scan(ctx, "media/", func(key, _ string) bool {
		keys = append(keys, key)
		return len(keys) < 2
	}))
	assert.Equal(t, []string{"media/a", "media/b"}, keys)

	assert.Equal(t, []string{"media/a", "media/b", "media/c"}, s.Keys("media/"))
	assert.Equal(t, 4, s.Len())
}

func TestIndexBuiltFromEngine(t *testing.T) {
	database := memory.NewVolatile()
	require.NoError(t, database.Set("media/existing", []byte("1")))

	s := newStore(t, database)

	has, err := s.Has(context.Background(), "media/existing")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRefreshSeesExternalWriters(t *testing.T) {
	ctx := context.Background()
	database := memory.NewVolatile()
	s := newStore(t, database)

	// write behind the store's back
	require.NoError(t, database.Set("media/external", []byte("1")))

	has, err := s.Has(ctx, "media/external")
	require.NoError(t, err)
	assert.False(t, has, "index only changes through the store or Refresh")

	require.NoError(t, s.Refresh())
	has, err = s.Has(ctx, "media/external")
	require.NoError(t, err)
	assert.True(t, has)

	// and external deletes: Range skips entries that vanished from the engine
	require.NoError(t, database.Delete("media/external"))
	count := 0
	require.NoError(t, s.Range(ctx, func(string, string) bool {
		count++
		return true
	}))
	assert.Equal(t, 0, count)
}

func TestDurableReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	factory := func() (db.KVDB, error) { return engines.Open(db.ImplSqlite, dir) }

	s, err := NewLocalStore(factory)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "media/a", "1"))
	require.NoError(t, s.Close())

	s, err = NewLocalStore(factory)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "media/a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, []string{"media/a"}, s.Keys(""))
}

func TestFactoryError(t *testing.T) {
	_, err := NewLocalStore(func() (db.KVDB, error) { return nil, errors.New("disk on fire") })
	assert.ErrorIs(t, err, store.ErrInternal)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestCancelledContext(t *testing.T) {
	s := newStore(t, memory.NewVolatile())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Len())
}
