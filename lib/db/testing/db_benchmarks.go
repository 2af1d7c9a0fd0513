package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/mediamanager/mstore/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	open := func(b *testing.B) db.KVDB {
		database := factory(b.TempDir())
		b.Cleanup(func() {
			database.Close()
		})
		return database
	}

	b.Run(name+"/Set", func(b *testing.B) {
		benchmarkSet(b, open(b))
	})

	b.Run(name+"/SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, open(b))
	})

	b.Run(name+"/Get", func(b *testing.B) {
		benchmarkGet(b, open(b))
	})

	b.Run(name+"/Delete", func(b *testing.B) {
		benchmarkDelete(b, open(b))
	})

	b.Run(name+"/Has(not)", func(b *testing.B) {
		benchmarkHasNot(b, open(b))
	})

	b.Run(name+"/Range", func(b *testing.B) {
		benchmarkRange(b, open(b))
	})

	b.Run(name+"/SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, open(b), open(b))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func fill(b *testing.B, database db.KVDB, numKeys int) {
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if err := database.Set(key, value); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {
	requireFeature(b, database, db.FeatureSet)

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_ = database.Set(fmt.Sprintf("test-key-%d", i), []byte(fmt.Sprintf("test-value-%d", i)))
		}
	})
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, database db.KVDB) {
	requireFeature(b, database, db.FeatureSet)

	numKeys := 1000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = database.Set(fmt.Sprintf("test-key-%d", counter%numKeys), []byte(fmt.Sprintf("test-value-%d", counter)))
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	numKeys := 10000
	fill(b, database, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _, _ = database.Get(fmt.Sprintf("test-key-%d", counter%numKeys))
			counter++
		}
	})
}

// Parallel benchmarking for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {
	requireFeature(b, database, db.FeatureSet|db.FeatureDelete)

	numKeys := 10000
	if b.N < numKeys {
		numKeys = b.N
	}
	fill(b, database, numKeys)

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx := int(counter.Add(1)-1) % numKeys
			_ = database.Delete(fmt.Sprintf("test-key-%d", idx))
		}
	})
}

// Parallel benchmarking for Has operation (with key miss)
func benchmarkHasNot(b *testing.B, database db.KVDB) {
	requireFeature(b, database, db.FeatureHas)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = database.Has("test-key")
		}
	})
}

// Benchmark for a full prefix scan
func benchmarkRange(b *testing.B, database db.KVDB) {
	requireFeature(b, database, db.FeatureSet|db.FeatureRange)

	fill(b, database, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Range("test-key-", func(string, []byte) bool { return true })
	}
}

// Benchmark for Save and Load operations
// For these operations, parallelization is not meaningful
func benchmarkSaveLoad(b *testing.B, database, database2 db.KVDB) {
	requireFeature(b, database, db.FeatureSet|db.FeatureSave|db.FeatureLoad)

	fill(b, database, 10000)

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := database.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		data := buf.Bytes()
		for i := 0; i < b.N; i++ {
			if err := database2.Load(bytes.NewReader(data)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
