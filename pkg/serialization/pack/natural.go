package pack

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// SerializeUint64 encodes x in the variable-length natural form: a prefix
// byte whose leading ones give the number of little-endian bytes that follow.
// Values below 2^7 take one byte, anything from 2^56 up takes nine.
func SerializeUint64(x uint64) []byte {
	var l uint8
	for l = 0; l < 8; l++ {
		if x < (1 << (7 * (uint64(l) + 1))) {
			break
		}
	}
	out := make([]byte, 0, l+1)
	if l < 8 {
		prefix := uint8((256 - (1 << (8 - l))) + (x>>(8*l))&math.MaxUint8)
		out = append(out, prefix)
	} else {
		out = append(out, math.MaxUint8)
	}
	for i := 0; i < int(l); i++ {
		out = append(out, uint8((x>>(8*i))&math.MaxUint8))
	}
	return out
}

// compactLength is the number of bytes following a prefix byte.
func compactLength(prefix byte) uint8 {
	return uint8(bits.LeadingZeros8(^prefix))
}

// DeserializeUint64WithLength decodes a natural whose prefix announced l
// trailing bytes. serialized holds the prefix followed by those bytes.
func DeserializeUint64WithLength(serialized []byte, l uint8, u *uint64) error {
	*u = 0

	if len(serialized) != int(l)+1 {
		return ErrTruncatedNatural
	}

	if l == 8 {
		if serialized[0] != math.MaxUint8 {
			return errFirstByteNineByteSerialization
		}
		*u = binary.LittleEndian.Uint64(serialized[1:9])
		return nil
	}

	for i := uint8(0); i < l; i++ {
		*u |= uint64(serialized[i+1]) << (8 * i)
	}
	*u |= uint64(serialized[0]&(math.MaxUint8>>l)) << (8 * l)

	return nil
}

// serializeFixed writes the low l bytes of x little-endian.
func serializeFixed(x uint64, l uint) []byte {
	out := make([]byte, l)
	for i := uint(0); i < l && i < 8; i++ {
		out[i] = byte(x >> (8 * i))
	}
	return out
}

func deserializeFixed(b []byte) uint64 {
	var u uint64
	for i := 0; i < len(b) && i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return u
}
