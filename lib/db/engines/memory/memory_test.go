package memory

import (
	"path/filepath"
	"testing"

	"github.com/mediamanager/mstore/lib/db"
	dbtesting "github.com/mediamanager/mstore/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t testing.TB, path string) db.KVDB {
	database, err := New(&Options{NumShards: 4, Path: path})
	require.NoError(t, err)
	return database
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "Memory", func(dir string) db.KVDB {
		return open(t, filepath.Join(dir, "memory.snapshot"))
	})
}

func TestVolatile(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MemoryVolatile", func(string) db.KVDB {
		return NewVolatile()
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.snapshot")

	database := open(t, path)
	require.NoError(t, database.Set("k", []byte("v")))
	require.NoError(t, database.Close())

	// second Close is a no-op
	assert.NoError(t, database.Close())

	reopened := open(t, path)
	v, ok, err := reopened.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "Memory", func(string) db.KVDB {
		return NewVolatile()
	})
}
