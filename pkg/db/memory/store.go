package memory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eigerco/podmap/pkg/db"
	"github.com/eigerco/podmap/pkg/log"
)

var (
	_ db.Opener  = Open
	_ db.Checker = (*KVStore)(nil)
)

// KVStore is a db.KVStore over an in-process skip list. Stores opened on the
// same path share their contents until Destroy is called; an empty path
// yields a private store.
type KVStore struct {
	t    *table
	path string
	log  zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	iterators map[*Iterator]struct{}
}

// Open satisfies db.Opener. Cache, compression and file limits have no
// meaning in memory and are ignored.
func Open(path string, opts db.Options) (db.KVStore, error) {
	return NewKVStore(path, opts)
}

func NewKVStore(path string, opts db.Options) (*KVStore, error) {
	cmp := opts.Comparer
	if cmp == nil {
		cmp = defaultComparer
	}

	t, err := acquire(path, cmp, opts.CreateIfMissing)
	if err != nil {
		return nil, err
	}

	logger := log.Storage.With().Str("engine", "memory").Str("path", path).Logger()
	logger.Debug().Str("comparer", cmp.Name()).Msg("memory store opened")

	return &KVStore{
		t:         t,
		path:      path,
		log:       logger,
		iterators: make(map[*Iterator]struct{}),
	}, nil
}

func acquire(path string, cmp db.Comparer, create bool) (*table, error) {
	if path == "" {
		t := newTable(cmp)
		t.open = true
		return t, nil
	}

	registry.Lock()
	defer registry.Unlock()

	t, ok := registry.tables[path]
	switch {
	case !ok && !create:
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	case !ok:
		t = newTable(cmp)
		registry.tables[path] = t
	case t.open:
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	case t.cmp.Name() != cmp.Name():
		return nil, fmt.Errorf(ErrComparerMismatch, path, t.cmp.Name(), cmp.Name())
	}
	t.open = true
	return t, nil
}

// Capabilities reports that nothing is ever written to disk and that the
// fill-cache flag is trivially honoured.
func (m *KVStore) Capabilities() db.Capabilities {
	return db.Capabilities{
		ToleratesShortWrites: true,
		HonoursFillCache:     true,
	}
}

func (m *KVStore) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	m.t.mu.RLock()
	defer m.t.mu.RUnlock()

	elem := m.t.get(key)
	if elem == nil {
		return nil, ErrNotFound
	}
	return clone(elem.Value.([]byte)), nil
}

// Put stores value under key. sync has no effect.
func (m *KVStore) Put(key, value []byte, sync bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	m.t.set(key, value)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (m *KVStore) Delete(key []byte, sync bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	m.t.mu.Lock()
	defer m.t.mu.Unlock()
	m.t.remove(key)
	return nil
}

// Len returns the number of stored keys.
func (m *KVStore) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}

	m.t.mu.RLock()
	defer m.t.mu.RUnlock()
	return m.t.list.Len(), nil
}

// Check verifies that keys are held in strictly increasing comparer order.
func (m *KVStore) Check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	m.t.mu.RLock()
	defer m.t.mu.RUnlock()

	var prev []byte
	for elem := m.t.list.Front(); elem != nil; elem = elem.Next() {
		key := elem.Key().([]byte)
		if prev != nil && m.t.cmp.Compare(prev, key) >= 0 {
			return fmt.Errorf(ErrOutOfOrder, db.FormatKey(m.t.cmp, prev), db.FormatKey(m.t.cmp, key))
		}
		prev = key
	}
	return nil
}

// Close closes open iterators and releases the path for the next Open.
func (m *KVStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for it := range m.iterators {
		errs = append(errs, it.closeLocked())
	}
	m.iterators = nil

	registry.Lock()
	m.t.open = false
	registry.Unlock()

	m.log.Debug().Msg("memory store closed")
	return errors.Join(errs...)
}

func (m *KVStore) forget(it *Iterator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.iterators, it)
}
