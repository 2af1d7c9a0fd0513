// Package db defines the engine interface that the local store persists records through.
//
// The package focuses on:
//   - A unified interface for key-value operations (Set, Get, Has, Delete, Range)
//   - Feature discovery through capability flags
//   - An engine independent snapshot format (Save, Load)
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engines must satisfy. Values are raw
//     bytes, keys are strings. Collections share one engine and are separated by key prefix.
//
//   - Feature Flags: The Feature type defines capability flags that engines advertise
//     through SupportsFeature. FeatureDurable marks engines whose entries survive a restart.
//
//   - Snapshots: WriteSnapshot, ReadSnapshot and LoadSnapshot implement the binary
//     snapshot format shared by all engines.
//
// Engines:
//
// The engines/memory package provides a sharded in-memory engine (optionally persisted
// to a snapshot file on Close). engines/pebble stores entries in a Pebble LSM tree and
// engines/sqlite in a single SQLite table. engines.Open picks one by name.
//
// The testing package (lib/db/testing) provides the conformance suite every engine runs:
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
