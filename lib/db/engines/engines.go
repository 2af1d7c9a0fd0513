// Package engines opens a db.KVDB implementation by name.
package engines

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediamanager/mstore/lib/db"
	"github.com/mediamanager/mstore/lib/db/engines/memory"
	"github.com/mediamanager/mstore/lib/db/engines/pebble"
	"github.com/mediamanager/mstore/lib/db/engines/sqlite"
)

// Open creates the engine impl with its files below dataDir.
// An empty dataDir gives a volatile engine where the implementation allows it
// (memory, sqlite); pebble always needs a directory.
func Open(impl db.Implementation, dataDir string) (db.KVDB, error) {
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	switch impl {
	case db.ImplMemory:
		opts := memory.DefaultOptions()
		if dataDir != "" {
			opts.Path = filepath.Join(dataDir, "memory.snapshot")
		}
		return memory.New(opts)
	case db.ImplPebble:
		if dataDir == "" {
			return nil, fmt.Errorf("engine %s needs a data dir", impl)
		}
		return pebble.New(pebble.Options{Dir: filepath.Join(dataDir, "pebble")})
	case db.ImplSqlite:
		path := ":memory:"
		if dataDir != "" {
			path = filepath.Join(dataDir, "mstore.sqlite")
		}
		return sqlite.New(path)
	default:
		return nil, fmt.Errorf("unknown engine %q (expected one of %v)", impl, db.Implementations)
	}
}
