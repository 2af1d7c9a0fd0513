// Package lstore implements the local key-value store based on the store.IStore interface.
// It is a thin wrapper around a db.KVDB engine (memory, pebble or sqlite) that adds a
// sorted key index.
//
// Key Features:
//   - Durable storage when the engine is durable
//   - Sorted Range and prefix Scan
//   - Feature detection to handle unsupported engine operations gracefully
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Key Index: a google/btree of all keys, built from the engine when the store is
//     opened. Every mutation path of the store (Set, Remove) updates it under the same
//     lock as the engine write, so Has and Range never observe a stale index for writes
//     made through this process. Writes by other processes to the same files are only
//     seen after Refresh.
//
//   - Feature Detection: Before executing operations, the store checks if the underlying
//     db.KVDB implementation supports the requested feature through the SupportsFeature
//     method. Unsupported operations return RetCUnsupportedOperation.
//
//   - Composition Architecture: the store.DBFactory function injects the engine.
//
// Usage Example:
//
//	factory := func() (db.KVDB, error) { return engines.Open(db.ImplPebble, dir) }
//	s, err := lstore.NewLocalStore(factory)
//
//	err = s.Set(ctx, "media/abc", `{"title":"x"}`)
//	value, exists, err := s.Get(ctx, "media/abc")
package lstore
