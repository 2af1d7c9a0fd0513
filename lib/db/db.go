package db

import "io"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplPebble Implementation = "pebble"
	ImplSqlite Implementation = "sqlite"
)

// Implementations lists every engine known to the factory, in the order they are documented.
var Implementations = []Implementation{ImplMemory, ImplPebble, ImplSqlite}

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet     Feature = 1 << iota // Support for Set operations
	FeatureGet                         // Support for Get operations
	FeatureDelete                      // Support for Delete operations
	FeatureHas                         // Support for Has operations
	FeatureRange                       // Support for prefix Range scans
	FeatureSave                        // Support for Save operations
	FeatureLoad                        // Support for Load operations
	FeatureDurable                     // Entries survive Close and reopen
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureRange:
		return "Range"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureDurable:
		return "Durable"
	default:
		return "Unknown"
	}
}

// Features splits a feature mask into its single flags.
func Features(mask Feature) []Feature {
	var out []Feature
	for f := FeatureSet; f <= FeatureDurable; f <<= 1 {
		if mask&f == f {
			out = append(out, f)
		}
	}
	return out
}

type DatabaseInfo struct {
	Entries           int            `json:"entries"`
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for the key-value engines underneath the local store.
// Keys and values are opaque; records of different collections share one engine and are
// told apart by key prefix.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key and value.
	// If the key already exists, the old value is overwritten.
	Set(key string, value []byte) (err error)

	// Delete removes an entry with the specified key.
	// Deleting a missing key is not an error.
	Delete(key string) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// The returned slice is a copy and may be modified by the caller.
	Get(key string) (value []byte, loaded bool, err error)

	// Has checks whether a key exists in the database.
	Has(key string) (loaded bool, err error)

	// Range calls fn for every entry whose key starts with prefix (empty prefix = all entries).
	// Iteration stops when fn returns false. The order is implementation specific.
	// fn may read from the database but must not write to it.
	Range(prefix string, fn func(key string, value []byte) bool) (err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save writes a snapshot of all entries to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database content with a snapshot produced by Save.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database. Durable engines flush pending state.
	Close() (err error)
}
