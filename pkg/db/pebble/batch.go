package pebble

import (
	"sync/atomic"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/podmap/pkg/db"
)

type Batch struct {
	store *KVStore
	batch *pebble.Batch
	count int
	done  atomic.Bool
}

func (p *KVStore) NewBatch() db.Batch {
	return &Batch{
		store: p,
		batch: p.db.NewBatch(),
	}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	if err := b.batch.Set(key, value, nil); err != nil {
		return err
	}
	b.count++
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	if err := b.batch.Delete(key, nil); err != nil {
		return err
	}
	b.count++
	return nil
}

// Count returns the number of staged operations.
func (b *Batch) Count() int {
	return b.count
}

func (b *Batch) Commit(sync bool) error {
	if b.done.Load() {
		return ErrBatchDone
	}

	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return ErrClosed
	}

	if err := b.batch.Commit(writeOptions(sync)); err != nil {
		return err
	}
	b.done.Store(true)
	return b.batch.Close()
}

func (b *Batch) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	return b.batch.Close()
}
