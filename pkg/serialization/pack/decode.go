package pack

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"reflect"
)

// Unmarshaler is the interface implemented by types that can unpack themselves.
// UnmarshalPack receives the remaining input and reports how many bytes it consumed.
type Unmarshaler interface {
	UnmarshalPack(data []byte) (int, error)
}

// Unmarshal unpacks data into dst, which must be a non-nil pointer to the
// type that was passed to Marshal. Input left over after dst is fully
// decoded is an error.
func Unmarshal(data []byte, dst interface{}) error {
	dstv := reflect.ValueOf(dst)
	if dstv.Kind() != reflect.Ptr || dstv.IsNil() {
		return fmt.Errorf(ErrUnsupportedType, dst)
	}

	reader := bytes.NewReader(data)
	br := byteReader{Reader: reader, buf: reader}
	if err := br.unmarshal(dstv.Elem()); err != nil {
		return err
	}
	if reader.Len() != 0 {
		return ErrTrailingBytes
	}
	return nil
}

func NewDecoder(reader io.Reader) *Decoder {
	br := byteReader{Reader: reader}
	if b, ok := reader.(*bytes.Reader); ok {
		br.buf = b
	}
	return &Decoder{br}
}

type Decoder struct {
	byteReader
}

func (d *Decoder) Decode(dst any) error {
	dstv := reflect.ValueOf(dst)
	if dstv.Kind() != reflect.Ptr || dstv.IsNil() {
		return fmt.Errorf(ErrUnsupportedType, dst)
	}

	return d.unmarshal(dstv.Elem())
}

type byteReader struct {
	io.Reader
	// buf is set when the input size is known, to bound length prefixes.
	buf *bytes.Reader
}

func (br *byteReader) unmarshal(value reflect.Value) error {
	if value.CanAddr() {
		if u, ok := value.Addr().Interface().(Unmarshaler); ok {
			return br.decodeCustom(u)
		}
	}

	switch value.Kind() {
	case reflect.Bool:
		return br.decodeBool(value)
	case reflect.Int8, reflect.Uint8:
		return br.decodeFixedWidth(value, 1)
	case reflect.Int16, reflect.Uint16:
		return br.decodeFixedWidth(value, 2)
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		return br.decodeFixedWidth(value, 4)
	case reflect.Int, reflect.Int64, reflect.Uint64, reflect.Float64:
		return br.decodeFixedWidth(value, 8)
	case reflect.Uint:
		return br.decodeUint(value)
	case reflect.String:
		return br.decodeString(value)
	case reflect.Ptr:
		return br.decodePointer(value)
	case reflect.Struct:
		return br.decodeStruct(value)
	case reflect.Array:
		return br.decodeArray(value)
	case reflect.Slice:
		if value.Type().Elem().Kind() == reflect.Uint8 {
			return br.decodeBytes(value)
		}
		return br.decodeSlice(value)
	case reflect.Map:
		return br.decodeMap(value)
	default:
		return fmt.Errorf(ErrUnsupportedType, value.Type())
	}
}

// decodeCustom hands the remaining input to an Unmarshaler. Only supported
// when the input size is known.
func (br *byteReader) decodeCustom(u Unmarshaler) error {
	if br.buf == nil {
		return fmt.Errorf(ErrUnsupportedType, u)
	}
	rest := make([]byte, br.buf.Len())
	if _, err := br.buf.ReadAt(rest, br.buf.Size()-int64(br.buf.Len())); err != nil && err != io.EOF {
		return fmt.Errorf(ErrReadingBytes, err)
	}
	n, err := u.UnmarshalPack(rest)
	if err != nil {
		return err
	}
	_, err = br.buf.Seek(int64(n), io.SeekCurrent)
	return err
}

func (br *byteReader) readFull(n uint) ([]byte, error) {
	if br.buf != nil && n > uint(br.buf.Len()) {
		return nil, ErrExceedingByteArrayLimit
	}
	b := make([]byte, n)
	if n == 0 {
		return b, nil
	}
	if _, err := io.ReadFull(br.Reader, b); err != nil {
		return nil, fmt.Errorf(ErrReadingBytes, err)
	}
	return b, nil
}

func (br *byteReader) ReadOctet() (byte, error) {
	b, err := br.readFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (br *byteReader) decodePointer(value reflect.Value) error {
	isNil, err := br.readPointerMarker()
	if err != nil {
		return err
	}

	if isNil {
		value.Set(reflect.Zero(value.Type()))
		return nil
	}

	if value.IsNil() {
		value.Set(reflect.New(value.Type().Elem()))
	}

	return br.unmarshal(value.Elem())
}

func (br *byteReader) decodeSlice(value reflect.Value) error {
	l, err := br.decodeLength()
	if err != nil {
		return err
	}
	out := reflect.MakeSlice(value.Type(), 0, 0)
	elemType := value.Type().Elem()
	for i := uint(0); i < l; i++ {
		elem := reflect.New(elemType).Elem()
		if err := br.unmarshal(elem); err != nil {
			return err
		}
		out = reflect.Append(out, elem)
	}
	value.Set(out)

	return nil
}

func (br *byteReader) decodeArray(value reflect.Value) error {
	temp := reflect.New(value.Type()).Elem()
	for i := 0; i < temp.Len(); i++ {
		if err := br.unmarshal(temp.Index(i)); err != nil {
			return err
		}
	}
	value.Set(temp)

	return nil
}

func (br *byteReader) decodeMap(value reflect.Value) error {
	mapType := value.Type()

	length, err := br.decodeLength()
	if err != nil {
		return fmt.Errorf(ErrDecodingMapLength, err)
	}

	hint := length
	if br.buf != nil && hint > uint(br.buf.Len()) {
		hint = uint(br.buf.Len())
	}
	tempMap := reflect.MakeMapWithSize(mapType, int(hint))

	for i := uint(0); i < length; i++ {
		key := reflect.New(mapType.Key()).Elem()
		if err := br.unmarshal(key); err != nil {
			return fmt.Errorf(ErrDecodingMapKey, err)
		}

		elem := reflect.New(mapType.Elem()).Elem()
		if err := br.unmarshal(elem); err != nil {
			return fmt.Errorf(ErrDecodingMapValue, err)
		}

		tempMap.SetMapIndex(key, elem)
	}

	value.Set(tempMap)

	return nil
}

func (br *byteReader) decodeStruct(value reflect.Value) error {
	t := value.Type()

	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)
		fieldType := t.Field(i)

		// Skip unexported fields
		if !field.CanSet() {
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
			if err := br.decodeTaggedWidth(field, opts.length); err != nil {
				return fmt.Errorf(ErrDecodingStructField, fieldType.Name, err)
			}
			continue
		case opts.compact:
			if err := br.decodeUint(field); err != nil {
				return fmt.Errorf(ErrDecodingStructField, fieldType.Name, err)
			}
			continue
		}

		if err := br.unmarshal(field); err != nil {
			return fmt.Errorf(ErrDecodingStructField, fieldType.Name, err)
		}
	}

	return nil
}

func (br *byteReader) decodeBool(value reflect.Value) error {
	rb, err := br.ReadOctet()
	if err != nil {
		return err
	}

	switch rb {
	case 0x00:
		value.SetBool(false)
	case 0x01:
		value.SetBool(true)
	default:
		return ErrDecodingBool
	}

	return nil
}

// decodeUint reads a compact natural into any unsigned integer value.
func (br *byteReader) decodeUint(value reflect.Value) error {
	prefix, err := br.ReadOctet()
	if err != nil {
		return fmt.Errorf(ErrDecodingUint, err)
	}

	l := compactLength(prefix)
	rest, err := br.readFull(uint(l))
	if err != nil {
		return fmt.Errorf(ErrDecodingUint, err)
	}

	var v uint64
	if err := DeserializeUint64WithLength(append([]byte{prefix}, rest...), l, &v); err != nil {
		return fmt.Errorf(ErrDecodingUint, err)
	}

	switch value.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if value.OverflowUint(v) {
			return fmt.Errorf(ErrDecodingUint, fmt.Errorf("value %d overflows %v", v, value.Type()))
		}
		value.SetUint(v)
	default:
		return fmt.Errorf(ErrUnsupportedCompactField, value.Kind())
	}

	return nil
}

func (br *byteReader) decodeLength() (uint, error) {
	var l uint
	if err := br.decodeUint(reflect.ValueOf(&l).Elem()); err != nil {
		return 0, err
	}
	return l, nil
}

func (br *byteReader) decodeBytes(value reflect.Value) error {
	length, err := br.decodeLength()
	if err != nil {
		return err
	}
	if length > math.MaxUint32 {
		return ErrExceedingByteArrayLimit
	}
	b, err := br.readFull(length)
	if err != nil {
		return err
	}
	value.SetBytes(b)
	return nil
}

func (br *byteReader) decodeString(value reflect.Value) error {
	length, err := br.decodeLength()
	if err != nil {
		return err
	}
	b, err := br.readFull(length)
	if err != nil {
		return err
	}
	value.SetString(string(b))
	return nil
}

func (br *byteReader) decodeFixedWidth(value reflect.Value, length uint) error {
	buf, err := br.readFull(length)
	if err != nil {
		return err
	}
	u := deserializeFixed(buf)

	switch value.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value.SetUint(u)
	case reflect.Int8:
		value.SetInt(int64(int8(u)))
	case reflect.Int16:
		value.SetInt(int64(int16(u)))
	case reflect.Int32:
		value.SetInt(int64(int32(u)))
	case reflect.Int, reflect.Int64:
		value.SetInt(int64(u))
	case reflect.Float32:
		value.SetFloat(float64(math.Float32frombits(uint32(u))))
	case reflect.Float64:
		value.SetFloat(math.Float64frombits(u))
	default:
		return fmt.Errorf(ErrUnsupportedType, value.Type())
	}

	return nil
}

// decodeTaggedWidth reads an integer field carrying a length tag.
func (br *byteReader) decodeTaggedWidth(value reflect.Value, length uint) error {
	if value.Kind() == reflect.Ptr {
		isNil, err := br.readPointerMarker()
		if err != nil {
			return err
		}
		if isNil {
			value.Set(reflect.Zero(value.Type()))
			return nil
		}
		if value.IsNil() {
			value.Set(reflect.New(value.Type().Elem()))
		}
		value = value.Elem()
	}

	buf, err := br.readFull(length)
	if err != nil {
		return err
	}
	u := deserializeFixed(buf)

	switch value.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value.SetUint(u)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value.SetInt(signExtend(u, length))
	default:
		return fmt.Errorf(ErrUnsupportedType, value.Type())
	}
	return nil
}

func signExtend(u uint64, length uint) int64 {
	if length >= 8 {
		return int64(u)
	}
	shift := 64 - 8*length
	return int64(u<<shift) >> shift
}

func (br *byteReader) readPointerMarker() (bool, error) {
	marker, err := br.ReadOctet()
	if err != nil {
		return false, err
	}

	switch marker {
	case 0x00:
		return true, nil
	case 0x01:
		return false, nil
	default:
		return false, ErrInvalidPointer
	}
}
