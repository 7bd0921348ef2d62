package pack

import (
	"errors"
)

var (
	// errFirstByteNineByteSerialization is returned when the first byte has wrong value in 9-byte serialization
	errFirstByteNineByteSerialization = errors.New("expected first byte to be 255 for 9-byte serialization")
	ErrTruncatedNatural               = errors.New("truncated natural number")
	ErrInvalidPointer                 = errors.New("invalid pointer marker")
	ErrDecodingBool                   = errors.New("error decoding boolean")
	ErrExceedingByteArrayLimit        = errors.New("byte array length exceeds remaining input")
	ErrTrailingBytes                  = errors.New("trailing bytes after value")

	ErrUnsupportedType         = "unsupported type: %v"
	ErrReadingBytes            = "error reading bytes: %w"
	ErrDecodingUint            = "error decoding uint: %w"
	ErrEncodingMapFieldKeyType = "error encoding map field: unsupported map key type %v"
	ErrDecodingMapLength       = "error decoding map length: %w"
	ErrDecodingMapKey          = "error decoding map key: %w"
	ErrDecodingMapValue        = "error decoding map value: %w"
	ErrEncodingStructField     = "encoding struct field '%s': %w"
	ErrDecodingStructField     = "decoding struct field '%s': %w"
	ErrConflictingTags         = "struct field '%s': length and encoding tags are mutually exclusive"
	ErrInvalidLengthValue      = "struct field '%s': invalid length tag: %w"
	ErrUnsupportedCompactField = "compact encoding is not supported for %v"
)
