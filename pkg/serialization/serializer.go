package serialization

import (
	"encoding/json"

	"github.com/eigerco/podmap/pkg/serialization/pack"
)

// Codec converts values of type V to and from bytes. Encode must be
// deterministic; Decode returns an error for input it cannot interpret.
type Codec[V any] interface {
	Encode(v V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// PackCodec implements Codec with the pack encoding.
type PackCodec[V any] struct{}

// NewPackCodec initializes the default binary codec.
func NewPackCodec[V any]() PackCodec[V] {
	return PackCodec[V]{}
}

func (PackCodec[V]) Encode(v V) ([]byte, error) {
	return pack.Marshal(v)
}

func (PackCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := pack.Unmarshal(data, &v); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// JSONCodec implements Codec for JSON encoding and decoding.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}
