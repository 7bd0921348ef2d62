package pebble

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/rs/zerolog"

	"github.com/eigerco/podmap/pkg/db"
	"github.com/eigerco/podmap/pkg/log"
)

const numLevels = 7

var (
	_ db.Opener  = Open
	_ db.Checker = (*KVStore)(nil)
)

// KVStore is a db.KVStore backed by a pebble instance. When the store was
// opened with a cache budget it owns the block cache and releases it only
// after the engine has been closed.
type KVStore struct {
	db    *pebble.DB
	cache *pebble.Cache
	log   zerolog.Logger

	mu        sync.RWMutex
	closed    bool
	iterators map[*Iterator]struct{}
}

// Open satisfies db.Opener.
func Open(path string, opts db.Options) (db.KVStore, error) {
	return NewKVStore(path, opts)
}

// NewKVStore opens the pebble database in path.
func NewKVStore(path string, opts db.Options) (*KVStore, error) {
	return open(path, opts, nil)
}

// NewMemKVStore opens a pebble database on an in-memory filesystem.
func NewMemKVStore(opts db.Options) (*KVStore, error) {
	opts.CreateIfMissing = true
	return open("", opts, vfs.NewMem())
}

func open(path string, opts db.Options, fs vfs.FS) (*KVStore, error) {
	logger := log.Storage.With().Str("engine", "pebble").Str("path", path).Logger()
	pebbleOpts, cache := options(opts, logger)
	if fs != nil {
		pebbleOpts.FS = fs
	}

	pdb, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		if cache != nil {
			cache.Unref()
		}
		return nil, fmt.Errorf(ErrOpen, path, err)
	}

	logger.Debug().
		Int64("cache", opts.CacheSize).
		Int64("write_buffer", opts.WriteBufferSize).
		Msg("pebble opened")

	return &KVStore{
		db:        pdb,
		cache:     cache,
		log:       logger,
		iterators: make(map[*Iterator]struct{}),
	}, nil
}

// options translates engine-neutral options into pebble's. The returned
// cache, if any, carries a reference the caller must drop after closing the
// engine.
func options(opts db.Options, logger zerolog.Logger) (*pebble.Options, *pebble.Cache) {
	o := &pebble.Options{
		ErrorIfNotExists: !opts.CreateIfMissing,
		MaxOpenFiles:     opts.MaxOpenFiles,
		Logger:           eventLogger{log: logger},
	}
	if opts.Comparer != nil {
		o.Comparer = newComparer(opts.Comparer)
	}
	if opts.WriteBufferSize > 0 {
		o.MemTableSize = uint64(opts.WriteBufferSize)
	}

	var cache *pebble.Cache
	if opts.CacheSize > 0 {
		cache = pebble.NewCache(opts.CacheSize)
		o.Cache = cache
	}

	compression := pebble.NoCompression
	if opts.Compression {
		compression = pebble.SnappyCompression
	}
	o.Levels = make([]pebble.LevelOptions, numLevels)
	for i := range o.Levels {
		o.Levels[i].Compression = compression
		o.Levels[i].TargetFileSize = (2 << 20) << i
	}

	return o, cache
}

// Capabilities reports that pebble recovers from a torn WAL tail and has no
// per-iterator cache fill control. Block checksums are always verified.
func (p *KVStore) Capabilities() db.Capabilities {
	return db.Capabilities{
		ToleratesShortWrites: true,
		HonoursFillCache:     false,
	}
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close() //nolint:errcheck // closing a get handle only releases memory

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *KVStore) Put(key, value []byte, sync bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Set(key, value, writeOptions(sync))
}

// Delete removes key. Deleting an absent key is not an error.
func (p *KVStore) Delete(key []byte, sync bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	return p.db.Delete(key, writeOptions(sync))
}

// Check walks every level of the LSM tree verifying key order and block
// checksums.
func (p *KVStore) Check() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	if err := p.db.CheckLevels(nil); err != nil {
		return fmt.Errorf(ErrCheckLevels, err)
	}
	return nil
}

// Flush forces the memtable to disk.
func (p *KVStore) Flush() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}
	return p.db.Flush()
}

// Close closes any iterator still open, then the engine, then drops the
// block cache reference. Closing twice is a no-op.
func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for it := range p.iterators {
		if err := it.closeLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	p.iterators = nil

	errs = append(errs, p.db.Close())
	if p.cache != nil {
		p.cache.Unref()
		p.cache = nil
	}
	p.log.Debug().Msg("pebble closed")
	return errors.Join(errs...)
}

func (p *KVStore) forget(it *Iterator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.iterators, it)
}

func writeOptions(sync bool) *pebble.WriteOptions {
	if sync {
		return pebble.Sync
	}
	return pebble.NoSync
}
