package memory

import (
	"bytes"
	"sync"

	"github.com/huandu/skiplist"

	"github.com/eigerco/podmap/pkg/db"
)

// defaultComparer orders keys bytewise and carries the name pebble uses for
// the same order.
var defaultComparer = db.CompareFunc{
	Fn:    bytes.Compare,
	Label: "leveldb.BytewiseComparator",
}

// table is the sorted key space shared by every handle opened on one path.
type table struct {
	mu   sync.RWMutex
	list *skiplist.SkipList
	cmp  db.Comparer
	open bool
}

func newTable(cmp db.Comparer) *table {
	list := skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs interface{}) int {
		return cmp.Compare(lhs.([]byte), rhs.([]byte))
	}))
	return &table{list: list, cmp: cmp}
}

// registry keeps named tables alive for the life of the process so a path can
// be closed and opened again.
var registry = struct {
	sync.Mutex
	tables map[string]*table
}{tables: make(map[string]*table)}

// Destroy forgets the table stored under path. It fails if the table is open.
func Destroy(path string) error {
	registry.Lock()
	defer registry.Unlock()

	t, ok := registry.tables[path]
	if !ok {
		return nil
	}
	if t.open {
		return ErrLocked
	}
	delete(registry.tables, path)
	return nil
}

// get returns the element holding key, or nil.
func (t *table) get(key []byte) *skiplist.Element {
	return t.list.Get(key)
}

// seek returns the first element not less than key, or nil.
func (t *table) seek(key []byte) *skiplist.Element {
	return t.list.Find(key)
}

// after returns the first element strictly greater than key.
func (t *table) after(key []byte) *skiplist.Element {
	elem := t.list.Find(key)
	if elem != nil && t.cmp.Compare(elem.Key().([]byte), key) == 0 {
		return elem.Next()
	}
	return elem
}

// before returns the last element strictly less than key.
func (t *table) before(key []byte) *skiplist.Element {
	elem := t.list.Find(key)
	if elem == nil {
		return t.list.Back()
	}
	return elem.Prev()
}

func (t *table) set(key, value []byte) {
	t.list.Set(clone(key), clone(value))
}

func (t *table) remove(key []byte) {
	t.list.Remove(key)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
