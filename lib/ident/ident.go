// Package ident provides the identifiers used as record keys inside a collection.
//
// An ID is either derived from content (base64 of the SHA-256 of the serialized record)
// or supplied by the caller. Both kinds share one key space per collection, so a
// content ID and a caller ID that happen to be equal name the same record.
package ident

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ID identifies one record in a collection. IDs are comparable and can be used as map keys.
type ID string

// Generate derives a content identifier: standard base64 (with padding) of the SHA-256
// digest of the UTF-8 bytes of serialized. Equal input always yields the same ID.
func Generate(serialized string) ID {
	sum := sha256.Sum256([]byte(serialized))
	return ID(base64.StdEncoding.EncodeToString(sum[:]))
}

// GenerateFor hashes the JSON encoding of v. Types with a canonical MarshalJSON (like
// doc.Document) produce stable IDs; plain structs are stable as long as their field order is.
func GenerateFor(v any) (ID, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return Generate(string(b)), nil
}

// FromString wraps a caller-supplied identifier without transforming it.
func FromString(s string) ID {
	return ID(s)
}

// New returns a random identifier for mutable entity records.
func New() ID {
	return ID(uuid.NewString())
}

// String returns the identifier exactly as it was created.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether id is the empty identifier.
func (id ID) IsZero() bool {
	return id == ""
}

// Compare orders IDs by their string bytes. It returns -1, 0 or +1.
func Compare(a, b ID) int {
	return strings.Compare(string(a), string(b))
}

// Sort sorts ids in place in ascending order.
func Sort(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Strings converts ids to plain strings, keeping the order.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
