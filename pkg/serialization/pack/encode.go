package pack

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
)

// Marshaler is the interface implemented by types that can pack themselves.
type Marshaler interface {
	MarshalPack() ([]byte, error)
}

// Marshal packs v. Fixed-size integers and floats are little-endian,
// int/uint and all lengths use the compact natural form, structs are the
// concatenation of their exported fields.
func Marshal(v interface{}) ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	bw := byteWriter{Writer: buffer}
	if err := bw.marshal(v); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// NewEncoder returns an Encoder writing packed values to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{byteWriter{w}}
}

type Encoder struct {
	byteWriter
}

func (e *Encoder) Encode(v any) error {
	return e.marshal(v)
}

type byteWriter struct {
	io.Writer
}

func (bw *byteWriter) marshal(in interface{}) error {
	if marshaler, ok := in.(Marshaler); ok {
		b, err := marshaler.MarshalPack()
		if err != nil {
			return err
		}
		_, err = bw.Write(b)
		return err
	}

	switch v := in.(type) {
	case int:
		return bw.encodeFixedWidth(uint64(v), 8)
	case uint:
		return bw.encodeCompact(uint64(v))
	case int8:
		return bw.encodeFixedWidth(uint64(v), 1)
	case int16:
		return bw.encodeFixedWidth(uint64(v), 2)
	case int32:
		return bw.encodeFixedWidth(uint64(v), 4)
	case int64:
		return bw.encodeFixedWidth(uint64(v), 8)
	case uint8:
		return bw.encodeFixedWidth(uint64(v), 1)
	case uint16:
		return bw.encodeFixedWidth(uint64(v), 2)
	case uint32:
		return bw.encodeFixedWidth(uint64(v), 4)
	case uint64:
		return bw.encodeFixedWidth(v, 8)
	case float32:
		return bw.encodeFixedWidth(uint64(math.Float32bits(v)), 4)
	case float64:
		return bw.encodeFixedWidth(math.Float64bits(v), 8)
	case []byte:
		return bw.encodeBytes(v)
	case string:
		return bw.encodeBytes([]byte(v))
	case bool:
		return bw.encodeBool(v)
	default:
		return bw.handleReflectTypes(v)
	}
}

func (bw *byteWriter) handleReflectTypes(in interface{}) error {
	val := reflect.ValueOf(in)
	switch val.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		return bw.encodeCustomPrimitive(val)
	case reflect.Ptr:
		if err := bw.writePointerMarker(val.IsNil()); err != nil {
			return err
		}
		if val.IsNil() {
			return nil
		}
		return bw.marshal(val.Elem().Interface())
	case reflect.Struct:
		return bw.encodeStruct(val)
	case reflect.Array:
		return bw.encodeArray(val)
	case reflect.Slice:
		if val.Type().Elem().Kind() == reflect.Uint8 {
			return bw.encodeBytes(val.Bytes())
		}
		return bw.encodeSlice(val)
	case reflect.Map:
		return bw.encodeMap(val)
	case reflect.Invalid:
		return fmt.Errorf(ErrUnsupportedType, "nil")
	default:
		return fmt.Errorf(ErrUnsupportedType, val.Type())
	}
}

// encodeCustomPrimitive handles named types whose underlying type is a primitive.
func (bw *byteWriter) encodeCustomPrimitive(val reflect.Value) error {
	switch val.Kind() {
	case reflect.Bool:
		return bw.marshal(val.Bool())
	case reflect.Int:
		return bw.marshal(int(val.Int()))
	case reflect.Int8:
		return bw.marshal(int8(val.Int()))
	case reflect.Int16:
		return bw.marshal(int16(val.Int()))
	case reflect.Int32:
		return bw.marshal(int32(val.Int()))
	case reflect.Int64:
		return bw.marshal(val.Int())
	case reflect.Uint:
		return bw.marshal(uint(val.Uint()))
	case reflect.Uint8:
		return bw.marshal(uint8(val.Uint()))
	case reflect.Uint16:
		return bw.marshal(uint16(val.Uint()))
	case reflect.Uint32:
		return bw.marshal(uint32(val.Uint()))
	case reflect.Uint64:
		return bw.marshal(val.Uint())
	case reflect.Float32:
		return bw.marshal(float32(val.Float()))
	case reflect.Float64:
		return bw.marshal(val.Float())
	case reflect.String:
		return bw.marshal(val.String())
	default:
		return fmt.Errorf(ErrUnsupportedType, val.Type())
	}
}

func (bw *byteWriter) encodeSlice(v reflect.Value) error {
	if err := bw.encodeLength(v.Len()); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		if err := bw.marshal(v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func (bw *byteWriter) encodeArray(v reflect.Value) error {
	for i := 0; i < v.Len(); i++ {
		if err := bw.marshal(v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// encodeMap encodes a map with its keys in ascending order so the output is deterministic.
func (bw *byteWriter) encodeMap(v reflect.Value) error {
	keys := v.MapKeys()

	if len(keys) == 0 {
		return bw.encodeLength(0)
	}

	if err := sortMapKeys(keys); err != nil {
		return err
	}

	if err := bw.encodeLength(len(keys)); err != nil {
		return err
	}

	for _, key := range keys {
		if err := bw.marshal(key.Interface()); err != nil {
			return err
		}
		if err := bw.marshal(v.MapIndex(key).Interface()); err != nil {
			return err
		}
	}

	return nil
}

func sortMapKeys(keys []reflect.Value) error {
	switch keys[0].Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Int() < keys[j].Int()
		})
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].Uint() < keys[j].Uint()
		})
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].String() < keys[j].String()
		})
	case reflect.Bool:
		sort.Slice(keys, func(i, j int) bool {
			return !keys[i].Bool() && keys[j].Bool()
		})
	case reflect.Array:
		if keys[0].Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf(ErrEncodingMapFieldKeyType, keys[0].Type())
		}
		sort.Slice(keys, func(i, j int) bool {
			return bytes.Compare(arrayBytes(keys[i]), arrayBytes(keys[j])) < 0
		})
	default:
		return fmt.Errorf(ErrEncodingMapFieldKeyType, keys[0].Kind())
	}

	return nil
}

// arrayBytes copies a [N]byte reflect value into a slice.
func arrayBytes(v reflect.Value) []byte {
	out := make([]byte, v.Len())
	for i := 0; i < v.Len(); i++ {
		out[i] = byte(v.Index(i).Uint())
	}
	return out
}

func (bw *byteWriter) encodeBool(b bool) error {
	if b {
		_, err := bw.Write([]byte{0x01})
		return err
	}
	_, err := bw.Write([]byte{0x00})
	return err
}

func (bw *byteWriter) encodeBytes(b []byte) error {
	if err := bw.encodeLength(len(b)); err != nil {
		return err
	}
	_, err := bw.Write(b)
	return err
}

func (bw *byteWriter) encodeFixedWidth(x uint64, l uint) error {
	_, err := bw.Write(serializeFixed(x, l))
	return err
}

// encodeTaggedWidth writes an integer field carrying a length tag.
func (bw *byteWriter) encodeTaggedWidth(val reflect.Value, l uint) error {
	if val.Kind() == reflect.Ptr {
		if err := bw.writePointerMarker(val.IsNil()); err != nil {
			return err
		}
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return bw.encodeFixedWidth(val.Uint(), l)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return bw.encodeFixedWidth(uint64(val.Int()), l)
	default:
		return fmt.Errorf(ErrUnsupportedType, val.Type())
	}
}

func (bw *byteWriter) writePointerMarker(isNil bool) error {
	marker := byte(0x00)
	if !isNil {
		marker = 0x01
	}
	_, err := bw.Write([]byte{marker})
	return err
}

func (bw *byteWriter) encodeStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// Skip unexported fields
		if !field.CanInterface() {
			continue
		}

		opts, err := fieldOptions(fieldType)
		if err != nil {
			return err
		}
		switch {
		case opts.skip:
			continue
		case opts.length > 0:
			if err := bw.encodeTaggedWidth(field, opts.length); err != nil {
				return fmt.Errorf(ErrEncodingStructField, fieldType.Name, err)
			}
			continue
		case opts.compact:
			switch field.Kind() {
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				if err := bw.encodeCompact(field.Uint()); err != nil {
					return fmt.Errorf(ErrEncodingStructField, fieldType.Name, err)
				}
				continue
			default:
				return fmt.Errorf(ErrUnsupportedCompactField, field.Kind())
			}
		}

		if err := bw.marshal(field.Interface()); err != nil {
			return fmt.Errorf(ErrEncodingStructField, fieldType.Name, err)
		}
	}

	return nil
}

func (bw *byteWriter) encodeLength(l int) error {
	return bw.encodeCompact(uint64(l))
}

func (bw *byteWriter) encodeCompact(i uint64) error {
	_, err := bw.Write(SerializeUint64(i))
	return err
}
