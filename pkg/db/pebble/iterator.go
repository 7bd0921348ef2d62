package pebble

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/podmap/pkg/db"
)

// Iterator wraps a pebble iterator. Once closed, directly or by closing the
// store, it reports itself invalid.
type Iterator struct {
	store *KVStore

	mu     sync.Mutex
	iter   *pebble.Iterator
	closed bool
}

// NewIterator opens an iterator over the whole key space. pebble always
// verifies block checksums and has no fill-cache switch, so opts is accepted
// for interface parity only.
func (p *KVStore) NewIterator(opts db.IterOptions) (db.Iterator, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf(ErrInIteratorCreation, err)
	}
	it := &Iterator{store: p, iter: iter}
	p.iterators[it] = struct{}{}
	return it, nil
}

func (it *Iterator) First() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return !it.closed && it.iter.First()
}

func (it *Iterator) Last() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return !it.closed && it.iter.Last()
}

func (it *Iterator) SeekGE(key []byte) bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return !it.closed && it.iter.SeekGE(key)
}

func (it *Iterator) Next() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed || !it.iter.Valid() {
		return false
	}
	return it.iter.Next()
}

func (it *Iterator) Prev() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed || !it.iter.Valid() {
		return false
	}
	return it.iter.Prev()
}

func (it *Iterator) Key() []byte {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed || !it.iter.Valid() {
		return nil
	}
	key := it.iter.Key()
	result := make([]byte, len(key))
	copy(result, key)
	return result
}

func (it *Iterator) Value() ([]byte, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed || !it.iter.Valid() {
		return nil, ErrIteratorInvalid
	}

	val, err := it.iter.ValueAndErr()
	if err != nil {
		return nil, fmt.Errorf(ErrIteratorValue, err)
	}

	result := make([]byte, len(val))
	copy(result, val)
	return result, nil
}

func (it *Iterator) Valid() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return !it.closed && it.iter.Valid()
}

func (it *Iterator) Error() error {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.closed {
		return nil
	}
	return it.iter.Error()
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
	if it.closed {
		return nil
	}
	it.closed = true
	return it.iter.Close()
}
