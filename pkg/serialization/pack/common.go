package pack

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// IntLength is the fixed width of a sized integer or float value.
func IntLength(in any) (uint, error) {
	switch in.(type) {
	case uint8, int8:
		return 1, nil
	case uint16, int16:
		return 2, nil
	case uint32, int32, float32:
		return 4, nil
	case uint64, int64, float64:
		return 8, nil
	default:
		return 0, fmt.Errorf(ErrUnsupportedType, in)
	}
}

type fieldTag struct {
	skip    bool
	length  uint
	compact bool
}

func parseTag(tag string) map[string]string {
	result := make(map[string]string)
	pairs := strings.Split(tag, ",")
	for _, pair := range pairs {
		kv := strings.Split(pair, "=")
		if len(kv) == 2 {
			result[kv[0]] = kv[1]
		}
	}
	return result
}

// fieldOptions reads the `pack` struct tag of f.
func fieldOptions(f reflect.StructField) (fieldTag, error) {
	tag, ok := f.Tag.Lookup("pack")
	if !ok {
		return fieldTag{}, nil
	}
	if tag == "-" {
		return fieldTag{skip: true}, nil
	}

	values := parseTag(tag)
	encoding, hasEncoding := values["encoding"]
	length, hasLength := values["length"]
	if hasEncoding && hasLength {
		return fieldTag{}, fmt.Errorf(ErrConflictingTags, f.Name)
	}

	var out fieldTag
	if hasLength {
		size, err := strconv.ParseUint(length, 10, 8)
		if err != nil {
			return fieldTag{}, fmt.Errorf(ErrInvalidLengthValue, f.Name, err)
		}
		out.length = uint(size)
	}
	out.compact = hasEncoding && encoding == "compact"
	return out, nil
}
