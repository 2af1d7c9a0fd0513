package serializer

import (
	"bytes"
	"encoding/json"
)

// NewJSONCodec creates a codec using json encoding.
// HTML characters are not escaped so records stay readable for the remote and the CLI.
func NewJSONCodec[T any]() ICodec[T] {
	return jsonCodecImpl[T]{}
}

// jsonCodecImpl implements the ICodec interface using json encoding
type jsonCodecImpl[T any] struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ICodec)
// --------------------------------------------------------------------------

func (jsonCodecImpl[T]) Encode(v T) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder terminates every value with a newline
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func (jsonCodecImpl[T]) Decode(s string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}

func (jsonCodecImpl[T]) Name() string {
	return "json"
}
