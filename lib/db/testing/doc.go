// Package testing provides standardised tests and benchmarks for
// engines that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite covering the KVDB contract (copies, deletes, prefix
//     ranges, snapshots and reopening durable engines)
//   - benchmark: Performance tests for measuring throughput of common operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(dir string) db.KVDB {
//		return NewMyDatabase(dir)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
