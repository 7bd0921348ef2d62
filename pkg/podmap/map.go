package podmap

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eigerco/podmap/pkg/db"
	"github.com/eigerco/podmap/pkg/log"
	"github.com/eigerco/podmap/pkg/serialization"
)

// Value is implemented by every type stored in a Map. TypeName must stay the
// same for as long as the stored layout does; the upgrade hook compares it
// with what the directory was written with.
type Value interface {
	TypeName() string
}

// Map is an ordered map from fixed-width keys to values, persisted by an
// embedded sorted storage engine. The engine synchronizes data operations;
// Map only guards its own open/closed state.
type Map[K any, V Value] struct {
	keys     KeyEncoding[K]
	comparer KeyComparer[K]
	codec    serialization.Codec[V]
	opts     options

	mu    sync.RWMutex
	store db.KVStore
	dir   string

	cursorsMu sync.Mutex
	cursors   map[*iterHandle]struct{}
}

// New returns a closed map. It panics if V is a pointer type or if WithCodec
// was given a codec for a different value type.
func New[K any, V Value](keys KeyEncoding[K], opts ...Option) *Map[K, V] {
	if t := reflect.TypeFor[V](); t.Kind() == reflect.Pointer {
		panic(fmt.Sprintf("podmap: value type %s is a pointer, store %s instead", t, t.Elem()))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var codec serialization.Codec[V] = serialization.NewPackCodec[V]()
	if o.codec != nil {
		c, ok := o.codec.(serialization.Codec[V])
		if !ok {
			panic(fmt.Sprintf("podmap: codec %T does not encode %s", o.codec, typeName[V]()))
		}
		codec = c
	}

	return &Map[K, V]{
		keys:     keys,
		comparer: NewKeyComparer(keys),
		codec:    codec,
		opts:     o,
	}
}

// logger resolves the storage logger on every use, so maps built before
// log.Init still log once it has run.
func (m *Map[K, V]) logger() *zerolog.Logger {
	if m.opts.logger != nil {
		return m.opts.logger
	}
	l := log.Storage.With().Str("map", typeName[V]()).Logger()
	return &l
}

func typeName[V Value]() string {
	var v V
	return v.TypeName()
}

func valueSize[V Value]() uintptr {
	return reflect.TypeFor[V]().Size()
}

// Open opens or creates the map stored in dir. With cacheSize > 0 half the
// budget becomes the engine's block cache and a quarter its write buffer,
// since two write buffers can be resident while one is being flushed.
func (m *Map[K, V]) Open(dir string, createIfMissing bool, cacheSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		return ErrAlreadyOpen
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &OpenError{Path: dir, Err: err}
	}

	engineOpts := db.Options{
		Comparer:        m.comparer,
		CreateIfMissing: createIfMissing,
		MaxOpenFiles:    m.opts.maxOpenFiles,
		VerifyChecksums: true,
		Compression:     false,
	}
	if cacheSize > 0 {
		engineOpts.CacheSize = cacheSize / 2
		engineOpts.WriteBufferSize = max(cacheSize/4, minWriteBuffer)
	}

	store, err := m.opts.engine(dir, engineOpts)
	if err != nil {
		return &OpenError{Path: dir, Err: err}
	}

	if err := paranoidCheck(store); err != nil {
		return &OpenError{Path: dir, Err: errors.Join(err, store.Close())}
	}

	name, size := typeName[V](), valueSize[V]()
	if m.opts.hook != nil {
		if err := m.opts.hook(dir, store, name, size); err != nil {
			upgradeErr := &UpgradeError{Path: dir, TypeName: name, Err: err}
			if closeErr := store.Close(); closeErr != nil {
				m.logger().Error().Err(closeErr).Str("dir", dir).Msg("close after failed upgrade")
			}
			return &OpenError{Path: dir, Err: upgradeErr}
		}
	}

	m.store = store
	m.dir = dir
	m.cursors = make(map[*iterHandle]struct{})

	m.logger().Info().
		Str("dir", dir).
		Str("type", name).
		Uint64("value_size", uint64(size)).
		Int64("cache", cacheSize).
		Msg("database opened")
	return nil
}

// paranoidCheck verifies persisted data on engines that recover from a torn
// log tail. On other engines a short write would be reported as corruption.
func paranoidCheck(store db.KVStore) error {
	if !store.Capabilities().ToleratesShortWrites {
		return nil
	}
	checker, ok := store.(db.Checker)
	if !ok {
		return nil
	}
	return checker.Check()
}

// Close closes open cursors, then the engine, which releases its block cache
// last. Closing a closed map does nothing.
func (m *Map[K, V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return nil
	}

	var errs []error
	m.cursorsMu.Lock()
	for h := range m.cursors {
		if err := h.it.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.cursors = nil
	m.cursorsMu.Unlock()

	if err := m.store.Close(); err != nil {
		errs = append(errs, err)
	}
	m.store = nil

	m.logger().Info().Str("dir", m.dir).Msg("database closed")
	if err := errors.Join(errs...); err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}

func (m *Map[K, V]) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store != nil
}

// Fetch returns the value stored under k, or ErrKeyNotFound.
func (m *Map[K, V]) Fetch(k K) (V, error) {
	v, ok, err := m.FetchOptional(k)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %v", ErrKeyNotFound, k)
	}
	return v, nil
}

// FetchOptional is Fetch with absence reported as false instead of an error.
func (m *Map[K, V]) FetchOptional(k K) (V, bool, error) {
	var zero V

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.store == nil {
		return zero, false, ErrNotOpen
	}

	key, err := m.keys.Encode(k)
	if err != nil {
		return zero, false, err
	}

	raw, err := m.store.Get(key)
	if errors.Is(err, db.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, &StorageError{Op: "fetch", Err: err}
	}

	v, err := m.decode(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Store writes v under k in a single engine put. With sync the write is
// fsynced before Store returns.
func (m *Map[K, V]) Store(k K, v V, sync bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.store == nil {
		return ErrNotOpen
	}

	key, err := m.keys.Encode(k)
	if err != nil {
		return err
	}
	raw, err := m.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("podmap: encode value: %w", err)
	}

	if err := m.store.Put(key, raw, sync); err != nil {
		return &StorageError{Op: "store", Err: err}
	}
	return nil
}

// Remove deletes k, failing with ErrKeyNotFound if it is absent. The engine
// does not report missing keys on delete, so presence is checked first; a
// concurrent writer can slip between the two steps.
func (m *Map[K, V]) Remove(k K, sync bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.store == nil {
		return ErrNotOpen
	}

	key, err := m.keys.Encode(k)
	if err != nil {
		return err
	}

	if _, err := m.store.Get(key); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrKeyNotFound, k)
		}
		return &StorageError{Op: "remove", Err: err}
	}

	if err := m.store.Delete(key, sync); err != nil {
		return &StorageError{Op: "remove", Err: err}
	}
	return nil
}

// Last returns the greatest key, or false when the map is empty.
func (m *Map[K, V]) Last() (K, bool, error) {
	k, _, ok, err := m.last(false)
	return k, ok, err
}

// LastEntry returns the greatest key and its value, or false when the map is
// empty.
func (m *Map[K, V]) LastEntry() (K, V, bool, error) {
	return m.last(true)
}

func (m *Map[K, V]) last(withValue bool) (K, V, bool, error) {
	var (
		k K
		v V
	)

	c, err := m.End()
	if err != nil {
		return k, v, false, err
	}
	defer c.Close() //nolint:errcheck

	if !c.Valid() {
		return k, v, false, nil
	}

	k = c.Key()
	if withValue {
		if v, err = c.Value(); err != nil {
			return k, v, false, err
		}
	}
	return k, v, true, nil
}

// Len counts the entries with a full scan.
func (m *Map[K, V]) Len() (int, error) {
	c, err := m.Begin()
	if err != nil {
		return 0, err
	}
	defer c.Close() //nolint:errcheck

	n := 0
	for ; c.Valid(); c.Next() {
		n++
	}
	return n, c.Err()
}

func (m *Map[K, V]) decode(raw []byte) (V, error) {
	v, err := m.codec.Decode(raw)
	if err != nil {
		return v, &DecodeError{Err: err}
	}
	return v, nil
}
