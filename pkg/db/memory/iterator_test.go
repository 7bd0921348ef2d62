package memory

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/podmap/pkg/db"
)

func collect(t *testing.T, it db.Iterator) []string {
	t.Helper()
	var keys []string
	for ok := it.First(); ok; ok = it.Next() {
		keys = append(keys, string(it.Key()))
	}
	return keys
}

func TestIterator(t *testing.T) {
	tests := []struct {
		name     string
		comparer db.Comparer
		expected []string
	}{
		{
			name:     "bytewise",
			expected: []string{"a", "b", "c", "d"},
		},
		{
			name: "reverse",
			comparer: db.CompareFunc{
				Fn:    func(a, b []byte) int { return bytes.Compare(b, a) },
				Label: "test.reverse",
			},
			expected: []string{"d", "c", "b", "a"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t, db.Options{Comparer: tc.comparer})
			for _, k := range []string{"c", "a", "d", "b"} {
				require.NoError(t, store.Put([]byte(k), []byte("v"+k), false))
			}

			it, err := store.NewIterator(db.IterOptions{})
			require.NoError(t, err)
			defer it.Close() //nolint:errcheck

			assert.Equal(t, tc.expected, collect(t, it))

			require.True(t, it.Last())
			var reversed []string
			for ok := true; ok; ok = it.Prev() {
				reversed = append(reversed, string(it.Key()))
			}
			for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
				reversed[i], reversed[j] = reversed[j], reversed[i]
			}
			assert.Equal(t, tc.expected, reversed)
		})
	}
}

func TestIteratorSeek(t *testing.T) {
	store := newTestStore(t, db.Options{})
	for _, k := range []string{"a", "c", "e"} {
		require.NoError(t, store.Put([]byte(k), []byte(k), false))
	}

	it, err := store.NewIterator(db.IterOptions{})
	require.NoError(t, err)
	defer it.Close() //nolint:errcheck

	assert.False(t, it.Valid())
	assert.False(t, it.Next())
	_, err = it.Value()
	assert.ErrorIs(t, err, ErrIteratorInvalid)

	require.True(t, it.SeekGE([]byte("b")))
	assert.Equal(t, []byte("c"), it.Key())
	v, err := it.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), v)

	require.True(t, it.Prev())
	assert.Equal(t, []byte("a"), it.Key())
	assert.False(t, it.Prev())
	assert.False(t, it.Valid())

	assert.False(t, it.SeekGE([]byte("f")))
	assert.Nil(t, it.Key())
}

func TestIteratorObservesWrites(t *testing.T) {
	store := newTestStore(t, db.Options{})
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put([]byte(k), []byte(k), false))
	}

	it, err := store.NewIterator(db.IterOptions{})
	require.NoError(t, err)
	defer it.Close() //nolint:errcheck

	require.True(t, it.First())
	assert.Equal(t, []byte("a"), it.Key())

	// deleting the current entry does not lose the position
	require.NoError(t, store.Delete([]byte("a"), false))
	require.NoError(t, store.Put([]byte("bb"), []byte("bb"), false))

	require.True(t, it.Next())
	assert.Equal(t, []byte("b"), it.Key())
	require.True(t, it.Next())
	assert.Equal(t, []byte("bb"), it.Key())
	require.True(t, it.Next())
	assert.Equal(t, []byte("c"), it.Key())
	assert.False(t, it.Next())
}
