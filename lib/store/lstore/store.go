package lstore

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/db"
	"github.com/mediamanager/mstore/lib/store"
)

var Logger = logger.GetLogger("store")

// Store is the local store: entries live in a db.KVDB engine, a sorted in-memory key
// index answers Has and Range.
type Store struct {
	db db.KVDB

	mu    sync.RWMutex
	index *btree.BTreeG[string]

	writes atomic.Uint64 // number of mutations since open
}

// NewLocalStore creates a new local store instance and builds the key index from the
// entries already present in the engine.
func NewLocalStore(factory store.DBFactory) (*Store, error) {
	database, err := factory()
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, err, "open engine")
	}
	return NewWithDB(database)
}

// NewWithDB wraps an already opened engine.
func NewWithDB(database db.KVDB) (*Store, error) {
	s := &Store{db: database}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh rebuilds the key index from the engine. Call it when another process may
// have written to the same engine files.
func (s *Store) Refresh() error {
	if !s.db.SupportsFeature(db.FeatureRange) {
		return store.NewError(store.RetCUnsupportedOperation, "Range operation is not supported")
	}

	fresh := btree.NewOrderedG[string](32)
	err := s.db.Range("", func(key string, _ []byte) bool {
		fresh.ReplaceOrInsert(key)
		return true
	})
	if err != nil {
		return store.WrapError(store.RetCInternalError, err, "build key index")
	}

	s.mu.Lock()
	s.index = fresh
	s.mu.Unlock()

	Logger.Debugf("key index rebuilt with %d keys", fresh.Len())
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if !s.db.SupportsFeature(db.FeatureGet) {
		return "", false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok, err := s.db.Get(key)
	if err != nil {
		return "", false, store.WrapError(store.RetCInternalError, err, "get %s", key)
	}
	return string(val), ok, nil
}

// Set writes the engine first and then updates the index. The index lock is held for
// both so Has never reports a key the engine does not have yet.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Set(key, []byte(value)); err != nil {
		return store.WrapError(store.RetCInternalError, err, "set %s", key)
	}
	s.index.ReplaceOrInsert(key)
	s.writes.Add(1)
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete(key); err != nil {
		return store.WrapError(store.RetCInternalError, err, "remove %s", key)
	}
	s.index.Delete(key)
	s.writes.Add(1)
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Has(key), nil
}

// Range visits the entries in ascending key order.
func (s *Store) Range(ctx context.Context, fn func(key, value string) bool) error {
	return s.Scan(ctx, "", fn)
}

// Scan visits the entries whose key starts with prefix in ascending key order.
// The keys are taken from the index first; entries removed while scanning are skipped.
func (s *Store) Scan(ctx context.Context, prefix string, fn func(key, value string) bool) error {
	for _, key := range s.Keys(prefix) {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, ok, err := s.db.Get(key)
		if err != nil {
			return store.WrapError(store.RetCInternalError, err, "get %s", key)
		}
		if !ok {
			continue
		}
		if !fn(key, string(val)) {
			return nil
		}
	}
	return nil
}

// Keys returns the indexed keys starting with prefix, sorted.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	s.index.AscendGreaterOrEqual(prefix, func(key string) bool {
		if !strings.HasPrefix(key, prefix) {
			return false
		}
		keys = append(keys, key)
		return true
	})
	return keys
}

// Len returns the number of indexed keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Writes returns the number of mutations applied through this store since it was opened.
func (s *Store) Writes() uint64 {
	return s.writes.Load()
}

// DBInfo returns metadata about the engine underlying the store.
func (s *Store) DBInfo() db.DatabaseInfo {
	return s.db.GetInfo()
}

// Close closes the engine.
func (s *Store) Close() error {
	return s.db.Close()
}
