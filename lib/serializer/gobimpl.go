package serializer

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
)

// NewGOBCodec creates a codec using Go's binary gob format.
// Store values are strings, so the gob bytes are kept as standard base64. Records in this
// format are only readable by Go clients and must never be sent to the remote.
func NewGOBCodec[T any]() ICodec[T] {
	return gobCodecImpl[T]{}
}

// gobCodecImpl implements the ICodec interface using gob encoding
type gobCodecImpl[T any] struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ICodec)
// --------------------------------------------------------------------------

func (gobCodecImpl[T]) Encode(v T) (string, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (gobCodecImpl[T]) Decode(s string) (T, error) {
	var v T
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return v, err
	}
	dec := gob.NewDecoder(bytes.NewReader(b))
	err = dec.Decode(&v)
	return v, err
}

func (gobCodecImpl[T]) Name() string {
	return "gob"
}
