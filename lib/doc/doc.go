// Package doc implements Document, the recursive value type used as the storage and wire
// format for records. A Document is either a Value (a string leaf) or a Map of uniquely
// keyed child documents.
//
// The package focuses on:
//   - Path lookup through nested maps ("a.b.c")
//   - A structural, left-biased merge used to reconcile a local record with a patch
//     or a remote copy
//   - A canonical JSON encoding (sorted keys, NFC-normalized strings, no HTML escaping)
//     that is stable enough to be hashed into content identifiers
//
// Merge Semantics:
//
//	Two maps merge into the union of their keys. Keys present on both sides are merged
//	recursively, keys present on one side are copied from that side. Any other
//	combination (value/value, value/map, map/value) resolves to the receiver, i.e. the
//	local side wins. The merge is deterministic but NOT associative, so it must only be
//	used for pairwise reconciliation.
//
// Documents are immutable. All operations that "modify" a document return a new one and
// never alias the maps of their inputs in a way that could be observed by the caller.
package doc
