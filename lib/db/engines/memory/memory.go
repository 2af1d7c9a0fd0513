package memory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/mediamanager/mstore/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Core memory database structure
// --------------------------------------------------------------------------

// memoryImpl keeps all entries in a fixed number of concurrent hash map shards.
type memoryImpl struct {
	shards []*xsync.MapOf[string, []byte]
	path   string // snapshot file, empty = volatile
	closed atomic.Bool
}

// Options configures the memory engine
type Options struct {
	NumShards int    // Number of shards (0 = runtime.NumCPU())
	Path      string // Snapshot file loaded on open and written on Close (empty = volatile)
}

// DefaultOptions returns the default memory engine options
func DefaultOptions() *Options {
	return &Options{
		NumShards: runtime.NumCPU(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// New creates a memory engine. If opts.Path names an existing snapshot it is loaded.
func New(opts *Options) (db.KVDB, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}

	m := &memoryImpl{
		shards: make([]*xsync.MapOf[string, []byte], numShards),
		path:   opts.Path,
	}
	for i := range m.shards {
		m.shards[i] = xsync.NewMapOf[string, []byte]()
	}

	if m.path != "" {
		f, err := os.Open(m.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// first start
		case err != nil:
			return nil, fmt.Errorf("memory: open snapshot: %w", err)
		default:
			defer f.Close()
			if err := m.Load(f); err != nil {
				return nil, fmt.Errorf("memory: load snapshot %s: %w", m.path, err)
			}
		}
	}

	return m, nil
}

// NewVolatile creates a memory engine without persistence. It never fails.
func NewVolatile() db.KVDB {
	m, _ := New(nil)
	return m
}

// shard returns the shard responsible for key
func (m *memoryImpl) shard(key string) *xsync.MapOf[string, []byte] {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set stores a copy of value under key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memoryImpl) Set(key string, value []byte) error {
	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	m.shard(key).Store(key, valueCopy)
	return nil
}

// Delete removes key. Missing keys are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memoryImpl) Delete(key string) error {
	m.shard(key).Delete(key)
	return nil
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *memoryImpl) Get(key string) ([]byte, bool, error) {
	v, ok := m.shard(key).Load(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Has reports whether key is present.
func (m *memoryImpl) Has(key string) (bool, error) {
	_, ok := m.shard(key).Load(key)
	return ok, nil
}

// Range visits all entries with the given prefix, shard by shard.
// Concurrent writes during a Range may or may not be observed.
func (m *memoryImpl) Range(prefix string, fn func(key string, value []byte) bool) error {
	for _, s := range m.shards {
		stopped := false
		s.Range(func(key string, value []byte) bool {
			if !strings.HasPrefix(key, prefix) {
				return true
			}
			if !fn(key, value) {
				stopped = true
				return false
			}
			return true
		})
		if stopped {
			return nil
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a snapshot of the engine to w
func (m *memoryImpl) Save(w io.Writer) error {
	return db.WriteSnapshot(w, m)
}

// Load replaces the content of the engine with the snapshot in r.
// The snapshot is fully decoded before any shard is touched.
func (m *memoryImpl) Load(r io.Reader) error {
	fresh := make([]*xsync.MapOf[string, []byte], len(m.shards))
	for i := range fresh {
		fresh[i] = xsync.NewMapOf[string, []byte]()
	}
	err := db.ReadSnapshot(r, func(key string, value []byte) error {
		fresh[xxhash.Sum64String(key)%uint64(len(fresh))].Store(key, value)
		return nil
	})
	if err != nil {
		return err
	}
	for i := range m.shards {
		m.shards[i].Clear()
		fresh[i].Range(func(key string, value []byte) bool {
			m.shards[i].Store(key, value)
			return true
		})
	}
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the engine
func (m *memoryImpl) GetInfo() db.DatabaseInfo {
	entries, size := 0, 0
	shardSizes := make([]int, len(m.shards))
	for i, s := range m.shards {
		shardSizes[i] = s.Size()
		s.Range(func(key string, value []byte) bool {
			entries++
			size += len(key) + len(value)
			return true
		})
	}

	meta := &struct {
		ShardCount int    `json:"shard_count"`
		ShardSizes []int  `json:"shard_sizes"`
		Snapshot   string `json:"snapshot,omitempty"`
	}{
		ShardCount: len(m.shards),
		ShardSizes: shardSizes,
		Snapshot:   m.path,
	}

	return db.DatabaseInfo{
		Entries:           entries,
		SizeBytes:         size,
		DbType:            db.ImplMemory,
		SupportedFeatures: db.Features(m.features()),
		Metadata:          meta,
	}
}

func (m *memoryImpl) features() db.Feature {
	f := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureRange |
		db.FeatureSave |
		db.FeatureLoad
	if m.path != "" {
		f |= db.FeatureDurable
	}
	return f
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (m *memoryImpl) SupportsFeature(feature db.Feature) bool {
	return m.features()&feature == feature
}

// Close writes the snapshot file if the engine is persistent.
// The file is written next to the target and renamed into place.
func (m *memoryImpl) Close() error {
	if !m.closed.CompareAndSwap(false, true) || m.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("memory: create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("memory: create snapshot: %w", err)
	}
	if err := m.Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("memory: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}
