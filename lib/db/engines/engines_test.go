package engines

import (
	"testing"

	"github.com/mediamanager/mstore/lib/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	for _, impl := range db.Implementations {
		t.Run(string(impl), func(t *testing.T) {
			database, err := Open(impl, t.TempDir())
			require.NoError(t, err)
			defer database.Close()

			assert.Equal(t, impl, database.GetInfo().DbType)
			assert.True(t, database.SupportsFeature(db.FeatureDurable))
		})
	}
}

func TestOpenVolatile(t *testing.T) {
	for _, impl := range []db.Implementation{db.ImplMemory, db.ImplSqlite} {
		database, err := Open(impl, "")
		require.NoError(t, err, impl)
		assert.False(t, database.SupportsFeature(db.FeatureDurable), impl)
		require.NoError(t, database.Close())
	}

	_, err := Open(db.ImplPebble, "")
	assert.Error(t, err)
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("rocks", t.TempDir())
	assert.ErrorContains(t, err, "unknown engine")
}
