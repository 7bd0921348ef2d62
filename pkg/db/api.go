package db

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("kv-store: key not found")
	ErrClosed          = errors.New("kv-store: database is closed")
	ErrBatchDone       = errors.New("kv-store: batch already committed or closed")
	ErrIteratorInvalid = errors.New("kv-store: iterator is not positioned")
)

// KVStore represents an ordered key-value storage engine providing point
// operations, batches and bidirectional iteration.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte, sync bool) error
	Delete(key []byte, sync bool) error
	NewBatch() Batch
	NewIterator(opts IterOptions) (Iterator, error)
	Capabilities() Capabilities
	Close() error
}

// Opener opens (or creates) a store rooted at path.
type Opener func(path string, opts Options) (KVStore, error)

// Batch represents an atomic batch of operations.
// All operations in a batch are performed atomically.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Count() int
	Commit(sync bool) error
	Close() error
}

// Iterator provides positioned access over the sorted key space.
// Iterators must be closed after use.
type Iterator interface {
	First() bool
	Last() bool
	SeekGE(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() ([]byte, error)
	Error() error
	Close() error
}

// Comparer defines the total order of keys in a store. Name is persisted by
// engines that record it, so it must not change for a given directory.
type Comparer interface {
	Compare(a, b []byte) int
	Name() string
}

// KeyFormatter is optionally implemented by a Comparer to render keys in
// engine diagnostics.
type KeyFormatter interface {
	FormatKey(key []byte) string
}

// Checker is implemented by engines that can verify the consistency of
// everything they have persisted.
type Checker interface {
	Check() error
}

// Options configures an engine at open time.
type Options struct {
	Comparer        Comparer
	CreateIfMissing bool
	MaxOpenFiles    int
	VerifyChecksums bool
	// WriteBufferSize and CacheSize are in bytes; zero keeps engine defaults
	// and disables the block cache respectively.
	WriteBufferSize int64
	CacheSize       int64
	Compression     bool
}

// IterOptions configures a new iterator.
type IterOptions struct {
	// FillCache lets blocks read by the iterator enter the block cache.
	FillCache       bool
	VerifyChecksums bool
}

// Capabilities reports engine properties callers may gate options on.
type Capabilities struct {
	// ToleratesShortWrites is true when a truncated log tail left by a crash
	// is recovered from rather than reported as corruption.
	ToleratesShortWrites bool
	// HonoursFillCache is true when IterOptions.FillCache has an effect.
	HonoursFillCache bool
}

// CompareFunc adapts a plain function into a Comparer.
type CompareFunc struct {
	Fn    func(a, b []byte) int
	Label string
}

func (c CompareFunc) Compare(a, b []byte) int { return c.Fn(a, b) }
func (c CompareFunc) Name() string            { return c.Label }

// FormatKey renders key with c when it implements KeyFormatter.
func FormatKey(c Comparer, key []byte) string {
	if f, ok := c.(KeyFormatter); ok {
		return f.FormatKey(key)
	}
	return fmt.Sprintf("%x", key)
}
