// Package store provides the key-value storage capability that collections are built on.
//
// The package focuses on:
//   - A unified interface (IStore) for string key-value operations across backends
//   - Pluggable engines for the local store through the DBFactory pattern
//   - Typed errors with return codes
//
// Key Components:
//
//   - IStore Interface: Get, Set, Remove, Has and Range. Every method takes a context so
//     that remote implementations can be cancelled. An absent key is reported through the
//     boolean result of Get and Has, never as an error.
//
//   - Error System: *Error carries a RetCode, a message and the cause. errors.Is matches
//     on the code, so callers can test for ErrNotFound, ErrRequestFailed and friends
//     regardless of the message.
//
// Implementations:
//
//   - Local Store (lstore): persists entries in a db.KVDB engine and keeps a sorted key
//     index for Has and Range.
//
//   - Remote Store (rstore): one HTTP request per operation against the media API.
//     It also offers the bulk List and the Reconcile endpoint used by the sync engine.
//
//   - Cache (cache): layers a local store over a main store with write-through or
//     write-back coherency.
package store
