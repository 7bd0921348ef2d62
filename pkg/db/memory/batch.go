package memory

import (
	"sync/atomic"

	"github.com/eigerco/podmap/pkg/db"
)

type op struct {
	key, value []byte
	delete     bool
}

// Batch stages operations and applies them under one table write lock.
type Batch struct {
	store *KVStore
	ops   []op
	done  atomic.Bool
}

func (m *KVStore) NewBatch() db.Batch {
	return &Batch{store: m}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	b.ops = append(b.ops, op{key: clone(key), value: clone(value)})
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return ErrBatchDone
	}
	b.ops = append(b.ops, op{key: clone(key), delete: true})
	return nil
}

func (b *Batch) Count() int {
	return len(b.ops)
}

func (b *Batch) Commit(_ bool) error {
	if b.done.Load() {
		return ErrBatchDone
	}

	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return ErrClosed
	}

	t := b.store.t
	t.mu.Lock()
	for _, o := range b.ops {
		if o.delete {
			t.remove(o.key)
			continue
		}
		t.set(o.key, o.value)
	}
	t.mu.Unlock()

	b.done.Store(true)
	b.ops = nil
	return nil
}

func (b *Batch) Close() error {
	b.done.Store(true)
	b.ops = nil
	return nil
}
