package memory

import (
	"sync"

	"github.com/huandu/skiplist"

	"github.com/eigerco/podmap/pkg/db"
)

// Iterator remembers the entry it is positioned on and re-seeks from its key
// on every step, so writes made between steps are observed and never
// invalidate it.
type Iterator struct {
	store *KVStore

	mu     sync.Mutex
	key    []byte
	value  []byte
	valid  bool
	closed bool
}

func (m *KVStore) NewIterator(_ db.IterOptions) (db.Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	it := &Iterator{store: m}
	m.iterators[it] = struct{}{}
	return it, nil
}

// position moves the iterator using pick, which runs under the table's read
// lock.
func (it *Iterator) position(pick func(t *table) *skiplist.Element) bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.closed {
		return false
	}

	t := it.store.t
	t.mu.RLock()
	elem := pick(t)
	if elem == nil {
		it.key, it.value, it.valid = nil, nil, false
	} else {
		it.key, it.value, it.valid = elem.Key().([]byte), elem.Value.([]byte), true
	}
	t.mu.RUnlock()

	return it.valid
}

func (it *Iterator) First() bool {
	return it.position(func(t *table) *skiplist.Element {
		return t.list.Front()
	})
}

func (it *Iterator) Last() bool {
	return it.position(func(t *table) *skiplist.Element {
		return t.list.Back()
	})
}

func (it *Iterator) SeekGE(key []byte) bool {
	return it.position(func(t *table) *skiplist.Element {
		return t.seek(key)
	})
}

func (it *Iterator) Next() bool {
	if !it.Valid() {
		return false
	}
	current := it.currentKey()
	return it.position(func(t *table) *skiplist.Element {
		return t.after(current)
	})
}

func (it *Iterator) Prev() bool {
	if !it.Valid() {
		return false
	}
	current := it.currentKey()
	return it.position(func(t *table) *skiplist.Element {
		return t.before(current)
	})
}

func (it *Iterator) currentKey() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.key
}

func (it *Iterator) Valid() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return !it.closed && it.valid
}

func (it *Iterator) Key() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed || !it.valid {
		return nil
	}
	return clone(it.key)
}

func (it *Iterator) Value() ([]byte, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed || !it.valid {
		return nil, ErrIteratorInvalid
	}
	return clone(it.value), nil
}

func (it *Iterator) Error() error {
	return nil
}

func (it *Iterator) Close() error {
	if err := it.closeLocked(); err != nil {
		return err
	}
	it.store.forget(it)
	return nil
}

func (it *Iterator) closeLocked() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.closed = true
	it.key, it.value, it.valid = nil, nil, false
	return nil
}
