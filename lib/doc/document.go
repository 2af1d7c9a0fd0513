package doc

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// --------------------------------------------------------------------------
// Document Type
// --------------------------------------------------------------------------

// Kind is the tag of a Document.
type Kind uint8

const (
	KindValue Kind = iota // leaf holding a string
	KindMap               // node holding named children
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Document is a tagged union of Value(string) and Map(string -> Document).
// The zero Document is Value("").
type Document struct {
	kind     Kind
	val      string
	children map[string]Document
}

// Val creates a Value document. The string is NFC-normalized so that equal text
// always encodes (and hashes) identically.
func Val(s string) Document {
	return Document{kind: KindValue, val: norm.NFC.String(s)}
}

// MapOf creates a Map document from the given children. The input map is copied and
// keys are NFC-normalized. When several keys normalize to the same form, the child of
// the smallest original key is kept.
func MapOf(children map[string]Document) Document {
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := make(map[string]Document, len(children))
	for _, k := range keys {
		nk := norm.NFC.String(k)
		if _, dup := m[nk]; dup {
			continue
		}
		m[nk] = children[k]
	}
	return Document{kind: KindMap, children: m}
}

// Empty returns a Map document without children.
func Empty() Document {
	return Document{kind: KindMap, children: map[string]Document{}}
}

// FromStrings is a shorthand for a flat Map of Value documents.
func FromStrings(fields map[string]string) Document {
	m := make(map[string]Document, len(fields))
	for k, v := range fields {
		m[k] = Val(v)
	}
	return MapOf(m)
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Kind returns the tag of the document.
func (d Document) Kind() Kind {
	return d.kind
}

// IsValue reports whether d is a leaf.
func (d Document) IsValue() bool {
	return d.kind == KindValue
}

// IsMap reports whether d is a map node.
func (d Document) IsMap() bool {
	return d.kind == KindMap
}

// Value returns the string of a Value document. The boolean is false for maps.
func (d Document) Value() (string, bool) {
	if d.kind != KindValue {
		return "", false
	}
	return d.val, true
}

// Len returns the number of children of a map, 0 for values.
func (d Document) Len() int {
	return len(d.children)
}

// Keys returns the sorted child keys of a map, nil for values.
func (d Document) Keys() []string {
	if d.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(d.children))
	for k := range d.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get looks up a dotted path ("a.b.c").
// An empty path returns d itself. The lookup fails when a segment is missing or when
// the path continues below a Value.
func (d Document) Get(path string) (Document, bool) {
	if path == "" {
		return d, true
	}
	if d.kind != KindMap {
		return Document{}, false
	}
	lead, rest, nested := strings.Cut(path, ".")
	child, ok := d.children[norm.NFC.String(lead)]
	if !ok {
		return Document{}, false
	}
	if !nested {
		return child, true
	}
	return child.Get(rest)
}

// GetString returns the string at path if it exists and is a Value.
func (d Document) GetString(path string) (string, bool) {
	child, ok := d.Get(path)
	if !ok {
		return "", false
	}
	return child.Value()
}

// Set returns a copy of d where the dotted path holds v.
// Missing intermediate maps are created; a Value found on the way is replaced by a map.
// Setting the empty path returns v.
func (d Document) Set(path string, v Document) Document {
	if path == "" {
		return v
	}
	lead, rest, nested := strings.Cut(path, ".")
	lead = norm.NFC.String(lead)

	m := make(map[string]Document, len(d.children)+1)
	if d.kind == KindMap {
		for k, c := range d.children {
			m[k] = c
		}
	}
	if nested {
		m[lead] = m[lead].Set(rest, v)
	} else {
		m[lead] = v
	}
	return Document{kind: KindMap, children: m}
}

// Remove returns a copy of d without the child at the dotted path.
// If the path does not exist the document is returned unchanged.
func (d Document) Remove(path string) Document {
	if path == "" || d.kind != KindMap {
		return d
	}
	lead, rest, nested := strings.Cut(path, ".")
	lead = norm.NFC.String(lead)
	child, ok := d.children[lead]
	if !ok {
		return d
	}
	m := make(map[string]Document, len(d.children))
	for k, c := range d.children {
		m[k] = c
	}
	if nested {
		m[lead] = child.Remove(rest)
	} else {
		delete(m, lead)
	}
	return Document{kind: KindMap, children: m}
}

// Walk calls fn for every leaf with its dotted path, in sorted key order.
// Walk stops early when fn returns false.
func (d Document) Walk(fn func(path string, value string) bool) {
	d.walk("", fn)
}

func (d Document) walk(prefix string, fn func(string, string) bool) bool {
	if d.kind == KindValue {
		return fn(prefix, d.val)
	}
	for _, k := range d.Keys() {
		p := k
		if prefix != "" {
			p = prefix + "." + k
		}
		if !d.children[k].walk(p, fn) {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Merge & Equality
// --------------------------------------------------------------------------

// Merge reconciles d (local) with other (remote or patch).
// Two maps produce the union of their keys, merging shared keys recursively. In every
// other combination d wins outright. Merge is pure.
func (d Document) Merge(other Document) Document {
	if d.kind != KindMap || other.kind != KindMap {
		return d
	}
	m := make(map[string]Document, len(d.children)+len(other.children))
	for k, left := range d.children {
		if right, ok := other.children[k]; ok {
			m[k] = left.Merge(right)
		} else {
			m[k] = left
		}
	}
	for k, right := range other.children {
		if _, ok := d.children[k]; !ok {
			m[k] = right
		}
	}
	return Document{kind: KindMap, children: m}
}

// Equal reports whether d and other are structurally identical.
func (d Document) Equal(other Document) bool {
	if d.kind != other.kind {
		return false
	}
	if d.kind == KindValue {
		return d.val == other.val
	}
	if len(d.children) != len(other.children) {
		return false
	}
	for k, c := range d.children {
		oc, ok := other.children[k]
		if !ok || !c.Equal(oc) {
			return false
		}
	}
	return true
}
