package testing

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/mediamanager/mstore/lib/db"
)

// DBFactory opens an engine that keeps its files in dir.
// Opening the same dir twice must yield the same content for durable engines.
type DBFactory func(dir string) db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	open := func(t *testing.T) db.KVDB {
		return factory(t.TempDir())
	}

	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, open(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, open(t))
		})

		t.Run("Range", func(t *testing.T) {
			testRange(t, open(t))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, open(t), open(t))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory, t.TempDir())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, open(t))
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, open(t))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, open(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

func mustSet(t testing.TB, database db.KVDB, key string, value []byte) {
	if err := database.Set(key, value); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func mustGet(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	v, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return v, ok
}

func mustHas(t testing.TB, database db.KVDB, key string) bool {
	ok, err := database.Has(key)
	if err != nil {
		t.Fatalf("Has(%q) failed: %v", key, err)
	}
	return ok
}

func mustDelete(t testing.TB, database db.KVDB, key string) {
	if err := database.Delete(key); err != nil {
		t.Fatalf("Delete(%q) failed: %v", key, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, database, testKey, testValue1)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustSet(t, database, testKey, testValue2)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = mustGet(t, database, "nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := mustGet(t, database, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := mustGet(t, database, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("caller-buffer")
	mustSet(t, database, "copy-key", input)
	input[0] = 'X'
	stored, _ := mustGet(t, database, "copy-key")
	if !bytes.Equal(stored, []byte("caller-buffer")) {
		t.Errorf("Set should copy the value, got %s", stored)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	testKey := "delete-test-key"
	testValue := []byte("delete-test-value")

	mustSet(t, database, testKey, testValue)

	_, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	mustDelete(t, database, testKey)

	_, exists = mustGet(t, database, testKey)
	if exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	// deleting a missing key is a no-op
	mustDelete(t, database, "nonexistent-key")
	mustDelete(t, database, testKey)
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureHas)

	testKey := "has-exists-test-key"

	if mustHas(t, database, testKey) {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	mustSet(t, database, testKey, []byte("has-exists-test-value"))

	if !mustHas(t, database, testKey) {
		t.Errorf("Expected Has to return true after Set")
	}

	mustDelete(t, database, testKey)

	if mustHas(t, database, testKey) {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testRange(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureRange)

	mustSet(t, database, "media/a", []byte("1"))
	mustSet(t, database, "media/b", []byte("2"))
	mustSet(t, database, "media/c", []byte("3"))
	mustSet(t, database, "docs/a", []byte("4"))
	mustSet(t, database, "medi", []byte("5"))
	mustSet(t, database, "media0", []byte("6"))

	collect := func(prefix string) map[string]string {
		out := map[string]string{}
		err := database.Range(prefix, func(key string, value []byte) bool {
			out[key] = string(value)
			return true
		})
		if err != nil {
			t.Fatalf("Range(%q) failed: %v", prefix, err)
		}
		return out
	}

	media := collect("media/")
	expected := map[string]string{"media/a": "1", "media/b": "2", "media/c": "3"}
	if len(media) != len(expected) {
		t.Errorf("Expected %d entries for prefix media/, got %d: %v", len(expected), len(media), media)
	}
	for k, v := range expected {
		if media[k] != v {
			t.Errorf("Expected %s=%s, got %q", k, v, media[k])
		}
	}

	all := collect("")
	if len(all) != 6 {
		t.Errorf("Expected 6 entries for empty prefix, got %d", len(all))
	}

	if none := collect("nothing/"); len(none) != 0 {
		t.Errorf("Expected no entries for unknown prefix, got %v", none)
	}

	// early stop
	visited := 0
	err := database.Range("", func(string, []byte) bool {
		visited++
		return visited < 2
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if visited != 2 {
		t.Errorf("Expected Range to stop after 2 entries, visited %d", visited)
	}

	// reads inside the callback are allowed
	err = database.Range("media/", func(key string, value []byte) bool {
		v, ok := mustGet(t, database, key)
		if !ok || !bytes.Equal(v, value) {
			t.Errorf("Get inside Range returned %s, %v for %s", v, ok, key)
		}
		return true
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
}

func testSaveLoad(t *testing.T, database, database2 db.KVDB) {
	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		originalKeys[i] = key
		originalValues[i] = value

		mustSet(t, database, key, value)
	}

	// entries only present in the target must be gone after Load
	mustSet(t, database2, "stale-key", []byte("stale"))

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]
		expectedValue := originalValues[i]

		actualValue, exists := mustGet(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	if _, exists := mustGet(t, database2, "stale-key"); exists {
		t.Errorf("Load should replace existing content")
	}

	if err := database2.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Expected Load of an invalid snapshot to fail")
	}
	if _, exists := mustGet(t, database2, originalKeys[0]); !exists {
		t.Errorf("Failed Load must leave the database untouched")
	}
}

func testReopen(t *testing.T, factory DBFactory, dir string) {
	database := factory(dir)
	if !database.SupportsFeature(db.FeatureDurable) {
		database.Close()
		t.Skip("engine is not durable")
	}

	mustSet(t, database, "persist/a", []byte("1"))
	mustSet(t, database, "persist/b", []byte("2"))
	mustSet(t, database, "persist/c", []byte("3"))
	mustDelete(t, database, "persist/b")

	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := factory(dir)
	defer reopened.Close()

	var keys []string
	err := reopened.Range("persist/", func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[persist/a persist/c]" {
		t.Errorf("Expected [persist/a persist/c] after reopen, got %v", keys)
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyValueKey := "empty-value-key"
	mustSet(t, database, emptyValueKey, []byte{})

	result, exists := mustGet(t, database, emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Empty value mismatch: %v", result)
	}

	nilValueKey := "nil-value-key"
	mustSet(t, database, nilValueKey, nil)

	result, exists = mustGet(t, database, nilValueKey)
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	unicodeKey := "media/日本語/ключ"
	mustSet(t, database, unicodeKey, []byte(`{"title":"ü"}`))
	result, exists = mustGet(t, database, unicodeKey)
	if !exists || string(result) != `{"title":"ü"}` {
		t.Errorf("Unicode key round trip failed: %s, %v", result, exists)
	}

	largeKey := string(bytes.Repeat([]byte("k"), 1000))
	largeKeyValue := []byte("value for large key")
	mustSet(t, database, largeKey, largeKeyValue)

	result, exists = mustGet(t, database, largeKey)
	if !exists {
		t.Errorf("Large key not found after Set")
	} else if !bytes.Equal(result, largeKeyValue) {
		t.Errorf("Value mismatch for large key")
	}

	largeValueKey := "large-value-key"
	largeValue := make([]byte, 4*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	mustSet(t, database, largeValueKey, largeValue)

	result, exists = mustGet(t, database, largeValueKey)
	if !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch: got %d bytes, want %d", len(result), len(largeValue))
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		mustSet(t, database, fmt.Sprintf("%s%d", prefix, i), []byte(fmt.Sprintf("value-%d", i)))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := []byte(fmt.Sprintf("value-%d", i))

		actualValue, exists := mustGet(t, database, key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value for key %s does not match: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		mustDelete(t, database, fmt.Sprintf("%s%d", prefix, i))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists := mustGet(t, database, key)

		if i%2 == 0 && exists {
			t.Errorf("Key %s should be deleted", key)
		}
		if i%2 == 1 && !exists {
			t.Errorf("Key %s should still exist", key)
		}
	}

	info := database.GetInfo()
	if info.Entries != numKeys/2 {
		t.Errorf("Expected GetInfo to report %d entries, got %d", numKeys/2, info.Entries)
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	type operation struct {
		op    string
		key   string
		value []byte
	}

	numOperations := 2_000
	operations := make([]operation, numOperations)

	for i := 0; i < numOperations; i++ {
		var op string
		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			op = "set"
		case 7, 8:
			op = "get"
		case 9:
			op = "delete"
		}

		var key string
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {
			key = fmt.Sprintf("key-%d", i)
		}

		var value []byte
		if op == "set" {
			value = []byte(fmt.Sprintf("value-%d", i))
		}

		operations[i] = operation{op, key, value}
	}

	numWorkers := 8
	opsPerWorker := numOperations / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	errs := make(chan error, numOperations)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			for i := start; i < start+opsPerWorker; i++ {
				op := operations[i]

				var err error
				switch op.op {
				case "set":
					err = database.Set(op.key, op.value)
				case "get":
					_, _, err = database.Get(op.key)
				case "delete":
					err = database.Delete(op.key)
				}
				if err != nil {
					errs <- fmt.Errorf("%s %s: %w", op.op, op.key, err)
				}
			}
		}(w)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Parallel operation failed: %v", err)
	}

	// Has and Get must agree on every key after the writers are done
	for _, op := range operations {
		has := mustHas(t, database, op.key)
		_, exists := mustGet(t, database, op.key)
		if has != exists {
			t.Errorf("Consistency error: Has=%v but Get exists=%v for %s", has, exists, op.key)
		}
	}
}
