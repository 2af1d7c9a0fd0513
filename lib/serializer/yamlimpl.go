package serializer

import "gopkg.in/yaml.v3"

// NewYAMLCodec creates a codec using yaml encoding
func NewYAMLCodec[T any]() ICodec[T] {
	return yamlCodecImpl[T]{}
}

// yamlCodecImpl implements the ICodec interface using yaml encoding
type yamlCodecImpl[T any] struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ICodec)
// --------------------------------------------------------------------------

func (yamlCodecImpl[T]) Encode(v T) (string, error) {
	b, err := yaml.Marshal(v)
	return string(b), err
}

func (yamlCodecImpl[T]) Decode(s string) (T, error) {
	var v T
	err := yaml.Unmarshal([]byte(s), &v)
	return v, err
}

func (yamlCodecImpl[T]) Name() string {
	return "yaml"
}
