package pebble

import (
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/mediamanager/mstore/lib/db"
)

// pebbleImpl stores every entry as one key in a Pebble LSM tree.
type pebbleImpl struct {
	db   *pebble.DB
	dir  string
	sync bool
}

// Options configures the pebble engine
type Options struct {
	Dir string // Directory of the pebble database (required)

	// NoSync disables fsync after each write. Faster, but the last writes may be lost on crash.
	NoSync bool
}

// New opens (or creates) a pebble database in opts.Dir.
func New(opts Options) (db.KVDB, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebble: no directory given")
	}
	pdb, err := pebble.Open(opts.Dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: open %s: %w", opts.Dir, err)
	}
	return &pebbleImpl{db: pdb, dir: opts.Dir, sync: !opts.NoSync}, nil
}

func (p *pebbleImpl) writeOpts() *pebble.WriteOptions {
	if p.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Set(key string, value []byte) error {
	return p.db.Set([]byte(key), value, p.writeOpts())
}

func (p *pebbleImpl) Delete(key string) error {
	return p.db.Delete([]byte(key), p.writeOpts())
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get copies the value out of pebble before the closer releases it.
func (p *pebbleImpl) Get(key string) ([]byte, bool, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (p *pebbleImpl) Has(key string) (bool, error) {
	_, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

// Range iterates in byte order over [prefix, successor(prefix)).
func (p *pebbleImpl) Range(prefix string, fn func(key string, value []byte) bool) error {
	opts := &pebble.IterOptions{}
	if prefix != "" {
		opts.LowerBound = []byte(prefix)
		opts.UpperBound = prefixEnd([]byte(prefix))
	}
	it := p.db.NewIter(opts)
	for it.First(); it.Valid(); it.Next() {
		if !fn(string(it.Key()), it.Value()) {
			break
		}
	}
	return it.Close()
}

// prefixEnd returns the smallest key greater than every key starting with prefix,
// or nil if there is none (prefix is all 0xff).
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (p *pebbleImpl) Save(w io.Writer) error {
	return db.WriteSnapshot(w, p)
}

func (p *pebbleImpl) Load(r io.Reader) error {
	return db.LoadSnapshot(r, p)
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	entries, size := 0, 0
	_ = p.Range("", func(key string, value []byte) bool {
		entries++
		size += len(key) + len(value)
		return true
	})

	m := p.db.Metrics()
	meta := &struct {
		Dir            string `json:"dir"`
		DiskSpaceUsage uint64 `json:"disk_space_usage"`
		Sync           bool   `json:"sync"`
	}{
		Dir:            p.dir,
		DiskSpaceUsage: m.DiskSpaceUsage(),
		Sync:           p.sync,
	}

	return db.DatabaseInfo{
		Entries:           entries,
		SizeBytes:         size,
		DbType:            db.ImplPebble,
		SupportedFeatures: db.Features(supported),
		Metadata:          meta,
	}
}

const supported = db.FeatureSet |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureRange |
	db.FeatureSave |
	db.FeatureLoad |
	db.FeatureDurable

func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	return supported&feature == feature
}

func (p *pebbleImpl) Close() error {
	return p.db.Close()
}
