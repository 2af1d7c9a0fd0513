// Package serializer provides the codecs that turn collection records into store values.
//
// Three codecs implement ICodec:
//   - JSON (default): the format the remote media API speaks. HTML escaping is off.
//   - GOB: Go's binary gob format, base64 encoded. Only for local-only collections.
//   - YAML: human-editable local records.
//
// Performance Note:
//
//	GOB decoding builds a new decoder per value, which makes it slower than JSON for the
//	small records a collection holds. Prefer JSON unless records carry Go-only types.
package serializer
