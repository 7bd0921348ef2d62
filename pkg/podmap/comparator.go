package podmap

import (
	"fmt"

	"github.com/eigerco/podmap/pkg/db"
)

var _ db.Comparer = KeyComparer[uint64]{}

// KeyComparer orders raw keys by decoding both sides and comparing the typed
// keys. Its name is recorded by the engine, so a directory written with one
// key encoding cannot be opened with another.
type KeyComparer[K any] struct {
	keys KeyEncoding[K]
}

func NewKeyComparer[K any](keys KeyEncoding[K]) KeyComparer[K] {
	return KeyComparer[K]{keys: keys}
}

// Compare panics with ErrKeySize if either key is not exactly the encoding's
// width. A wrong-width key in the engine means the stored order is already
// meaningless.
func (c KeyComparer[K]) Compare(a, b []byte) int {
	return c.keys.Compare(c.decode(a), c.decode(b))
}

func (c KeyComparer[K]) Name() string {
	return "podmap.key_compare." + c.keys.Name()
}

// FormatKey renders a raw key for engine diagnostics.
func (c KeyComparer[K]) FormatKey(key []byte) string {
	if len(key) != c.keys.Size() {
		return fmt.Sprintf("%x", key)
	}
	return fmt.Sprint(c.keys.Decode(key))
}

func (c KeyComparer[K]) decode(b []byte) K {
	if len(b) != c.keys.Size() {
		panic(fmt.Errorf("%w: got %d bytes, want %d", ErrKeySize, len(b), c.keys.Size()))
	}
	return c.keys.Decode(b)
}
