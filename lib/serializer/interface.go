package serializer

// ICodec converts records of type T to and from the string values kept in a store.
type ICodec[T any] interface {
	// Encode serializes v into a string.
	// It returns the serialized string and an error if any
	Encode(v T) (string, error)
	// Decode deserializes s into a new T.
	Decode(s string) (T, error)
	// Name identifies the codec ("json", "gob", "yaml").
	Name() string
}

// ByName returns the codec registered under name, or false for unknown names.
func ByName[T any](name string) (ICodec[T], bool) {
	switch name {
	case "json", "":
		return NewJSONCodec[T](), true
	case "gob":
		return NewGOBCodec[T](), true
	case "yaml":
		return NewYAMLCodec[T](), true
	default:
		return nil, false
	}
}
