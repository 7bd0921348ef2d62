package podmap

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
)

// KeyEncoding maps a key type onto fixed-width bytes. Decode is only ever
// handed slices of exactly Size bytes, and Compare is the key type's own
// ordering, which need not agree with the byte order of the encoding.
type KeyEncoding[K any] interface {
	Name() string
	Size() int
	Encode(k K) ([]byte, error)
	Decode(b []byte) K
	Compare(a, b K) int
}

// Uint64Key encodes uint64 keys as 8 big-endian bytes.
type Uint64Key struct{}

func (Uint64Key) Name() string { return "uint64" }
func (Uint64Key) Size() int    { return 8 }

func (Uint64Key) Encode(k uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, k), nil
}

func (Uint64Key) Decode(b []byte) uint64  { return binary.BigEndian.Uint64(b) }
func (Uint64Key) Compare(a, b uint64) int { return cmp.Compare(a, b) }

// Uint32Key encodes uint32 keys as 4 big-endian bytes.
type Uint32Key struct{}

func (Uint32Key) Name() string { return "uint32" }
func (Uint32Key) Size() int    { return 4 }

func (Uint32Key) Encode(k uint32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, k), nil
}

func (Uint32Key) Decode(b []byte) uint32  { return binary.BigEndian.Uint32(b) }
func (Uint32Key) Compare(a, b uint32) int { return cmp.Compare(a, b) }

// Int64Key encodes int64 keys as their 8 big-endian two's complement bytes.
// Negative keys therefore do not sort bytewise; ordering comes from Compare.
type Int64Key struct{}

func (Int64Key) Name() string { return "int64" }
func (Int64Key) Size() int    { return 8 }

func (Int64Key) Encode(k int64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, uint64(k)), nil
}

func (Int64Key) Decode(b []byte) int64  { return int64(binary.BigEndian.Uint64(b)) }
func (Int64Key) Compare(a, b int64) int { return cmp.Compare(a, b) }

// Int32Key encodes int32 keys as 4 big-endian bytes.
type Int32Key struct{}

func (Int32Key) Name() string { return "int32" }
func (Int32Key) Size() int    { return 4 }

func (Int32Key) Encode(k int32) ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, uint32(k)), nil
}

func (Int32Key) Decode(b []byte) int32  { return int32(binary.BigEndian.Uint32(b)) }
func (Int32Key) Compare(a, b int32) int { return cmp.Compare(a, b) }

// BytesKey is a fixed-width byte string compared lexicographically, such as
// a hash. Encoding a slice of any other width fails with ErrKeySize.
type BytesKey int

func (n BytesKey) Name() string { return fmt.Sprintf("bytes%d", int(n)) }
func (n BytesKey) Size() int    { return int(n) }

func (n BytesKey) Encode(k []byte) ([]byte, error) {
	if len(k) != int(n) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrKeySize, len(k), int(n))
	}
	return bytes.Clone(k), nil
}

func (n BytesKey) Decode(b []byte) []byte  { return bytes.Clone(b) }
func (n BytesKey) Compare(a, b []byte) int { return bytes.Compare(a, b) }
