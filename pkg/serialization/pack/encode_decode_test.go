package pack_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/podmap/pkg/serialization/pack"
)

type InnerStruct struct {
	Uint64 uint64
	Uint32 uint32
	Uint16 uint16
	Uint8  uint8
}

type TestStruct struct {
	IntField   int
	BoolField  bool
	LargeUint  uint
	Title      string
	Ratio      float64
	Blob       []byte
	Digest     [4]byte
	Parent     *InnerStruct
	InnerSlice []InnerStruct
	Tags       map[string]uint32
	hidden     int //nolint:unused // unexported fields are skipped
}

func TestMarshalUnmarshal(t *testing.T) {
	original := TestStruct{
		IntField:  -42,
		BoolField: true,
		LargeUint: math.MaxUint,
		Title:     "The Go Programming Language",
		Ratio:     0.125,
		Blob:      []byte{0xde, 0xad, 0xbe, 0xef},
		Digest:    [4]byte{1, 2, 3, 4},
		Parent:    &InnerStruct{9, 8, 7, 6},
		InnerSlice: []InnerStruct{
			{1, 2, 3, 4},
			{2, 3, 4, 5},
			{3, 4, 5, 6},
		},
		Tags: map[string]uint32{"b": 2, "a": 1},
	}

	marshaledData, err := pack.Marshal(original)
	require.NoError(t, err)

	var unmarshaled TestStruct
	err = pack.Unmarshal(marshaledData, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, original, unmarshaled)
}

func TestEmptyStruct(t *testing.T) {
	original := TestStruct{}

	marshaledData, err := pack.Marshal(original)
	require.NoError(t, err)

	var unmarshaled TestStruct
	err = pack.Unmarshal(marshaledData, &unmarshaled)
	require.NoError(t, err)

	// empty slices and maps come back allocated
	assert.Empty(t, unmarshaled.InnerSlice)
	assert.Empty(t, unmarshaled.Tags)
	assert.Nil(t, unmarshaled.Parent)
	assert.Equal(t, original.Title, unmarshaled.Title)
}

func TestMapEncodingIsDeterministic(t *testing.T) {
	m := map[uint16]string{3: "c", 1: "a", 2: "b"}
	first, err := pack.Marshal(m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := pack.Marshal(m)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	assert.Equal(t, []byte{3, 1, 0, 1, 'a', 2, 0, 1, 'b', 3, 0, 1, 'c'}, first)
}

func TestMarshalUnmarshalWithPointer(t *testing.T) {
	type StructWithPointer struct {
		IntField *uint
	}
	intVal := uint(42)
	original := StructWithPointer{
		IntField: &intVal,
	}

	marshaledData, err := pack.Marshal(original)
	require.NoError(t, err)

	var unmarshaled StructWithPointer
	err = pack.Unmarshal(marshaledData, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, original, unmarshaled)
}

func TestTopLevelPointer(t *testing.T) {
	in := &InnerStruct{Uint64: 7}
	b, err := pack.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b[0])

	var out *InnerStruct
	require.NoError(t, pack.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestLengthTag(t *testing.T) {
	type Alias uint16
	type CustomStruct struct {
		Alias      Alias   `pack:"length=6"`
		Uint32     uint32  `pack:"length=32"`
		NilPointer *uint8  `pack:"length=4"`
		Pointer    *uint64 `pack:"length=10"`
		Signed     int32   `pack:"length=3"`
		Count      uint64  `pack:"encoding=compact"`
		Skipped    string  `pack:"-"`
		Bool       bool
	}

	p := uint64(40)
	original := CustomStruct{
		Alias:   5,
		Uint32:  50,
		Pointer: &p,
		Signed:  -3,
		Count:   1 << 20,
		Bool:    true,
	}

	marshaledData, err := pack.Marshal(original)
	require.NoError(t, err)
	// 6 + 32 + 1 + (1+10) + 3 + 3 (compact 2^20) + 1
	assert.Len(t, marshaledData, 57)

	var unmarshaled CustomStruct
	err = pack.Unmarshal(marshaledData, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, original, unmarshaled)
}

func TestConflictingTags(t *testing.T) {
	type Bad struct {
		Field uint32 `pack:"length=4,encoding=compact"`
	}
	_, err := pack.Marshal(Bad{Field: 1})
	assert.Error(t, err)
}

func TestUnmarshalMalformed(t *testing.T) {
	type Book struct {
		Pages uint32
		Title string
	}
	good, err := pack.Marshal(Book{Pages: 3, Title: "abc"})
	require.NoError(t, err)

	testCases := []struct {
		name  string
		input []byte
		err   error
	}{
		{name: "truncated", input: good[:len(good)-1], err: pack.ErrExceedingByteArrayLimit},
		{name: "trailing", input: append(append([]byte{}, good...), 0), err: pack.ErrTrailingBytes},
		{name: "empty", input: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var b Book
			err := pack.Unmarshal(tc.input, &b)
			require.Error(t, err)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestUnmarshalInvalidMarkers(t *testing.T) {
	var b bool
	assert.ErrorIs(t, pack.Unmarshal([]byte{2}, &b), pack.ErrDecodingBool)

	var p *uint8
	assert.ErrorIs(t, pack.Unmarshal([]byte{7, 1}, &p), pack.ErrInvalidPointer)

	assert.Error(t, pack.Unmarshal([]byte{1}, b))
}

type celsius struct {
	tenths int16
}

func (c celsius) MarshalPack() ([]byte, error) {
	return []byte{byte(c.tenths), byte(c.tenths >> 8)}, nil
}

func (c *celsius) UnmarshalPack(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, pack.ErrTruncatedNatural
	}
	c.tenths = int16(uint16(data[0]) | uint16(data[1])<<8)
	return 2, nil
}

func TestCustomMarshaler(t *testing.T) {
	type Reading struct {
		Temp  celsius
		Label string
	}
	in := Reading{Temp: celsius{tenths: -215}, Label: "outside"}
	b, err := pack.Marshal(in)
	require.NoError(t, err)

	var out Reading
	require.NoError(t, pack.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
