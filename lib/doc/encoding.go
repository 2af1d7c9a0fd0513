package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// --------------------------------------------------------------------------
// Canonical JSON
// --------------------------------------------------------------------------

// MarshalJSON encodes d canonically: Value as a JSON string, Map as a JSON object with
// keys in byte order. Only quote, backslash and control characters are escaped.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	d.appendCanonical(&buf)
	return buf.Bytes(), nil
}

// String returns the canonical encoding of d. This is the text that is hashed into
// content identifiers.
func (d Document) String() string {
	var buf bytes.Buffer
	d.appendCanonical(&buf)
	return buf.String()
}

// Pretty returns the canonical encoding indented with two spaces.
func (d Document) Pretty() string {
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(d.String()), "", "  "); err != nil {
		// canonical output is always valid json
		panic(err)
	}
	return out.String()
}

func (d Document) appendCanonical(buf *bytes.Buffer) {
	if d.kind == KindValue {
		appendString(buf, d.val)
		return
	}
	buf.WriteByte('{')
	for i, k := range d.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		appendString(buf, k)
		buf.WriteByte(':')
		d.children[k].appendCanonical(buf)
	}
	buf.WriteByte('}')
}

const hexDigits = "0123456789abcdef"

// appendString writes s as a JSON string literal without HTML escaping.
func appendString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				buf.WriteString("\ufffd")
			} else {
				buf.WriteString(s[i : i+size])
			}
			i += size
			continue
		}
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
			} else {
				buf.WriteByte(c)
			}
		}
		i++
	}
	buf.WriteByte('"')
}

// UnmarshalJSON decodes a JSON string or object into d.
// Numbers, booleans, null and arrays are rejected since Documents only know strings
// and maps.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := fromAny(raw, "")
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse decodes the JSON text s into a Document.
func Parse(s string) (Document, error) {
	var d Document
	if err := d.UnmarshalJSON([]byte(s)); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	return d, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when the input is known to be valid.
func MustParse(s string) Document {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fromAny converts the result of a generic json decode. path is only used for errors.
func fromAny(v any, path string) (Document, error) {
	switch val := v.(type) {
	case string:
		return Val(val), nil
	case map[string]any:
		m := make(map[string]Document, len(val))
		for k, elem := range val {
			childPath := k
			if path != "" {
				childPath = path + "." + k
			}
			nk := norm.NFC.String(k)
			if _, dup := m[nk]; dup {
				return Document{}, fmt.Errorf("duplicate key %q at %s after normalization", nk, childPath)
			}
			child, err := fromAny(elem, childPath)
			if err != nil {
				return Document{}, err
			}
			m[nk] = child
		}
		return Document{kind: KindMap, children: m}, nil
	default:
		if path == "" {
			path = "<root>"
		}
		return Document{}, fmt.Errorf("unsupported json type %T at %s", v, path)
	}
}

// --------------------------------------------------------------------------
// YAML
// --------------------------------------------------------------------------

// MarshalYAML implements yaml.Marshaler. Values become scalars, maps become mappings
// (yaml.v3 sorts mapping keys on its own).
func (d Document) MarshalYAML() (interface{}, error) {
	return d.toAny(), nil
}

// toAny converts d into plain strings and maps.
func (d Document) toAny() any {
	if d.kind == KindValue {
		return d.val
	}
	m := make(map[string]any, len(d.children))
	for k, c := range d.children {
		m[k] = c.toAny()
	}
	return m
}
