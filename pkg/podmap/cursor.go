package podmap

import (
	"sync/atomic"

	"github.com/eigerco/podmap/pkg/db"
)

// iterHandle is one engine iterator shared by every clone of a cursor.
type iterHandle struct {
	it   db.Iterator
	refs atomic.Int32
}

// Cursor is a position in a Map. A cursor that is not Valid, such as the one
// Find returns for an absent key, may still be closed. A cursor stays usable
// only while its map is open; Map.Close invalidates every outstanding cursor.
type Cursor[K any, V Value] struct {
	m *Map[K, V]
	h *iterHandle
}

// Begin returns a cursor at the smallest key, invalid if the map is empty.
func (m *Map[K, V]) Begin() (*Cursor[K, V], error) {
	return m.seek("begin", func(it db.Iterator) bool {
		return it.First()
	})
}

// End returns a cursor at the greatest key, invalid if the map is empty.
func (m *Map[K, V]) End() (*Cursor[K, V], error) {
	return m.seek("end", func(it db.Iterator) bool {
		return it.Last()
	})
}

// Find returns a cursor at k, invalid if k is not stored.
func (m *Map[K, V]) Find(k K) (*Cursor[K, V], error) {
	key, err := m.keys.Encode(k)
	if err != nil {
		return nil, err
	}
	return m.seek("find", func(it db.Iterator) bool {
		return it.SeekGE(key) && m.comparer.Compare(it.Key(), key) == 0
	})
}

// LowerBound returns a cursor at the smallest key not less than k, invalid
// if there is none.
func (m *Map[K, V]) LowerBound(k K) (*Cursor[K, V], error) {
	key, err := m.keys.Encode(k)
	if err != nil {
		return nil, err
	}
	return m.seek("lower_bound", func(it db.Iterator) bool {
		return it.SeekGE(key)
	})
}

func (m *Map[K, V]) seek(op string, position func(it db.Iterator) bool) (*Cursor[K, V], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.store == nil {
		return nil, ErrNotOpen
	}

	it, err := m.store.NewIterator(db.IterOptions{FillCache: false, VerifyChecksums: true})
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}

	if !position(it) {
		iterErr := it.Error()
		if err := it.Close(); err != nil && iterErr == nil {
			iterErr = err
		}
		if iterErr != nil {
			return nil, &StorageError{Op: op, Err: iterErr}
		}
		return &Cursor[K, V]{m: m}, nil
	}

	h := &iterHandle{it: it}
	h.refs.Store(1)

	m.cursorsMu.Lock()
	m.cursors[h] = struct{}{}
	m.cursorsMu.Unlock()

	return &Cursor[K, V]{m: m, h: h}, nil
}

// Clone returns a second cursor sharing this one's position. Each must be
// closed.
func (c *Cursor[K, V]) Clone() *Cursor[K, V] {
	if c.h != nil {
		c.h.refs.Add(1)
	}
	return &Cursor[K, V]{m: c.m, h: c.h}
}

// Close releases this reference; the engine iterator is closed with the last
// one. Closing twice is a no-op.
func (c *Cursor[K, V]) Close() error {
	h := c.h
	if h == nil {
		return nil
	}
	c.h = nil

	if h.refs.Add(-1) > 0 {
		return nil
	}

	c.m.cursorsMu.Lock()
	delete(c.m.cursors, h)
	c.m.cursorsMu.Unlock()

	if err := h.it.Close(); err != nil {
		return &StorageError{Op: "close cursor", Err: err}
	}
	return nil
}

func (c *Cursor[K, V]) Valid() bool {
	return c.h != nil && c.h.it.Valid()
}

// Key returns the key under the cursor. It must only be called on a valid
// cursor and panics with ErrKeySize if the stored key has the wrong width.
func (c *Cursor[K, V]) Key() K {
	return c.m.comparer.decode(c.h.it.Key())
}

// Value decodes the value under the cursor.
func (c *Cursor[K, V]) Value() (V, error) {
	var zero V
	if !c.Valid() {
		return zero, &StorageError{Op: "value", Err: db.ErrIteratorInvalid}
	}
	raw, err := c.h.it.Value()
	if err != nil {
		return zero, &StorageError{Op: "value", Err: err}
	}
	return c.m.decode(raw)
}

// Next advances to the following key. It reports false, and does nothing,
// on an invalid cursor.
func (c *Cursor[K, V]) Next() bool {
	return c.Valid() && c.h.it.Next()
}

// Prev moves to the preceding key. It reports false, and does nothing, on an
// invalid cursor.
func (c *Cursor[K, V]) Prev() bool {
	return c.Valid() && c.h.it.Prev()
}

// Err returns the error, if any, that stopped iteration.
func (c *Cursor[K, V]) Err() error {
	if c.h == nil {
		return nil
	}
	if err := c.h.it.Error(); err != nil {
		return &StorageError{Op: "iterate", Err: err}
	}
	return nil
}
