package podmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/podmap/pkg/db/memory"
)

func TestCursor(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine.name, func(t *testing.T) {
			m := openBooks(t, engine.open, t.TempDir())
			for k := uint64(1); k <= 5; k++ {
				require.NoError(t, m.Store(k, book{Pages: int32(k)}, false))
			}

			t.Run("backward", func(t *testing.T) {
				c, err := m.End()
				require.NoError(t, err)
				defer c.Close() //nolint:errcheck

				var got []uint64
				for ; c.Valid(); c.Prev() {
					got = append(got, c.Key())
				}
				assert.Equal(t, []uint64{5, 4, 3, 2, 1}, got)
				assert.False(t, c.Prev())
			})

			t.Run("value", func(t *testing.T) {
				c, err := m.Find(3)
				require.NoError(t, err)
				defer c.Close() //nolint:errcheck

				v, err := c.Value()
				require.NoError(t, err)
				assert.Equal(t, book{Pages: 3}, v)

				require.True(t, c.Next())
				v, err = c.Value()
				require.NoError(t, err)
				assert.Equal(t, book{Pages: 4}, v)
			})

			t.Run("clone_shares_position", func(t *testing.T) {
				c, err := m.Begin()
				require.NoError(t, err)
				clone := c.Clone()

				require.NoError(t, c.Close())
				// the clone keeps the iterator alive
				require.True(t, clone.Valid())
				assert.Equal(t, uint64(1), clone.Key())
				require.True(t, clone.Next())
				assert.Equal(t, uint64(2), clone.Key())

				require.NoError(t, clone.Close())
				assert.False(t, clone.Valid())
				assert.NoError(t, clone.Close())
				assert.NoError(t, c.Close())
			})

			t.Run("invalid_value", func(t *testing.T) {
				c, err := m.Find(100)
				require.NoError(t, err)
				_, err = c.Value()
				var storageErr *StorageError
				assert.ErrorAs(t, err, &storageErr)
				assert.False(t, c.Clone().Valid())
				assert.NoError(t, c.Close())
			})
		})
	}
}

func TestCloseInvalidatesCursors(t *testing.T) {
	for _, engine := range engines {
		t.Run(engine.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Cleanup(func() {
				require.NoError(t, memory.Destroy(dir))
			})
			m := New[uint64, book](Uint64Key{}, WithEngine(engine.open))
			require.NoError(t, m.Open(dir, true, 1<<20))
			require.NoError(t, m.Store(1, book{Pages: 1}, false))

			c, err := m.Begin()
			require.NoError(t, err)
			clone := c.Clone()
			require.True(t, c.Valid())

			// an outstanding cursor does not block Close
			require.NoError(t, m.Close())
			assert.False(t, c.Valid())
			assert.False(t, clone.Next())
			assert.NoError(t, c.Close())
			assert.NoError(t, clone.Close())

			// and the map reopens cleanly afterwards
			require.NoError(t, m.Open(dir, false, 0))
			n, err := m.Len()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			require.NoError(t, m.Close())
		})
	}
}
