package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/mediamanager/mstore/lib/store"
)

var Logger = logger.GetLogger("cache")

// Coherency selects when writes reach the main store.
type Coherency uint8

const (
	// WriteThrough applies every write to the main store first, then to the local one.
	WriteThrough Coherency = iota
	// WriteBack applies writes locally and defers them to Flush.
	WriteBack
)

func (c Coherency) String() string {
	switch c {
	case WriteThrough:
		return "write-through"
	case WriteBack:
		return "write-back"
	default:
		return "unknown"
	}
}

// ParseCoherency parses "write-through" or "write-back" (also "through" and "back").
func ParseCoherency(s string) (Coherency, error) {
	switch strings.ToLower(s) {
	case "", "write-through", "through":
		return WriteThrough, nil
	case "write-back", "back":
		return WriteBack, nil
	default:
		return 0, fmt.Errorf("unknown coherency %q (want write-through or write-back)", s)
	}
}

// dirtyPrefix marks pending write-back operations in the local store. The marker value
// is the pending operation.
const (
	dirtyPrefix = "\x00dirty/"
	opSet       = "set"
	opRemove    = "remove"
)

// scanner is implemented by stores with a prefix scan (lstore.Store).
type scanner interface {
	Scan(ctx context.Context, prefix string, fn func(key, value string) bool) error
}

// Cache layers a local store over a main store and implements store.IStore.
// Pending write-back operations are stored next to the data in the local store, so they
// survive a restart when the local engine is durable.
type Cache struct {
	local store.IStore
	main  store.IStore
	mode  Coherency

	mu sync.Mutex // serializes writes and flushes
}

// New creates a cache. Reads are answered by local when possible.
func New(local, main store.IStore, mode Coherency) *Cache {
	return &Cache{local: local, main: main, mode: mode}
}

// Coherency returns the write mode.
func (c *Cache) Coherency() Coherency {
	return c.mode
}

// checkKey rejects keys in the range reserved for write-back markers.
func checkKey(key string) error {
	if strings.HasPrefix(key, dirtyPrefix) {
		return store.NewError(store.RetCUnsupportedOperation, fmt.Sprintf("key %q uses the reserved prefix %q", key, dirtyPrefix))
	}
	return nil
}

func (c *Cache) pending(ctx context.Context, key string) (string, error) {
	op, _, err := c.local.Get(ctx, dirtyPrefix+key)
	return op, err
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

// Get answers from the local store and falls back to the main store, caching what it
// finds there. A key removed in write-back mode stays absent until flushed.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	val, ok, err := c.local.Get(ctx, key)
	if err != nil || ok {
		return val, ok, err
	}
	if op, err := c.pending(ctx, key); err != nil || op == opRemove {
		return "", false, err
	}

	val, ok, err = c.main.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	if err := c.local.Set(ctx, key, val); err != nil {
		Logger.Warningf("failed to cache %s: %v", key, err)
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == WriteBack {
		if err := c.local.Set(ctx, key, value); err != nil {
			return err
		}
		return c.local.Set(ctx, dirtyPrefix+key, opSet)
	}

	if err := c.main.Set(ctx, key, value); err != nil {
		return err
	}
	return c.local.Set(ctx, key, value)
}

func (c *Cache) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == WriteBack {
		if err := c.local.Remove(ctx, key); err != nil {
			return err
		}
		return c.local.Set(ctx, dirtyPrefix+key, opRemove)
	}

	if err := c.main.Remove(ctx, key); err != nil {
		return err
	}
	return c.local.Remove(ctx, key)
}

func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}
	ok, err := c.local.Has(ctx, key)
	if err != nil || ok {
		return ok, err
	}
	if op, err := c.pending(ctx, key); err != nil || op == opRemove {
		return false, err
	}
	return c.main.Has(ctx, key)
}

// Range visits the local entries only. Records that were never read through the cache
// are not visited.
func (c *Cache) Range(ctx context.Context, fn func(key, value string) bool) error {
	return c.Scan(ctx, "", fn)
}

// Scan visits the local entries whose key starts with prefix.
func (c *Cache) Scan(ctx context.Context, prefix string, fn func(key, value string) bool) error {
	visit := func(key, value string) bool {
		if strings.HasPrefix(key, dirtyPrefix) || !strings.HasPrefix(key, prefix) {
			return true
		}
		return fn(key, value)
	}
	if sc, ok := c.local.(scanner); ok {
		return sc.Scan(ctx, prefix, visit)
	}
	return c.local.Range(ctx, visit)
}

// --------------------------------------------------------------------------
// Write-back
// --------------------------------------------------------------------------

// Dirty returns the keys with pending write-back operations, sorted.
func (c *Cache) Dirty(ctx context.Context) ([]string, error) {
	ops, err := c.dirty(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Cache) dirty(ctx context.Context) (map[string]string, error) {
	ops := make(map[string]string)
	visit := func(key, value string) bool {
		if strings.HasPrefix(key, dirtyPrefix) {
			ops[key[len(dirtyPrefix):]] = value
		}
		return true
	}
	var err error
	if sc, ok := c.local.(scanner); ok {
		err = sc.Scan(ctx, dirtyPrefix, visit)
	} else {
		err = c.local.Range(ctx, visit)
	}
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// Flush pushes pending write-back operations to the main store in key order. Each key
// is marked clean once the main store accepted it; on the first failure Flush stops and
// returns the number of keys flushed so far with the error.
func (c *Cache) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ops, err := c.dirty(ctx)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flushed := 0
	for _, key := range keys {
		switch ops[key] {
		case opSet:
			val, ok, err := c.local.Get(ctx, key)
			if err != nil {
				return flushed, err
			}
			if ok {
				if err := c.main.Set(ctx, key, val); err != nil {
					return flushed, fmt.Errorf("flush %s: %w", key, err)
				}
			}
		case opRemove:
			if err := c.main.Remove(ctx, key); err != nil {
				return flushed, fmt.Errorf("flush %s: %w", key, err)
			}
		default:
			Logger.Warningf("dropping unknown pending operation %q for %s", ops[key], key)
		}
		if err := c.local.Remove(ctx, dirtyPrefix+key); err != nil {
			return flushed, err
		}
		flushed++
	}
	if flushed > 0 {
		Logger.Infof("flushed %d pending writes", flushed)
	}
	return flushed, nil
}

var _ store.IStore = (*Cache)(nil)
