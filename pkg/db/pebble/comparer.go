package pebble

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/eigerco/podmap/pkg/db"
)

// newComparer bridges a db.Comparer into the comparer pebble persists in its
// manifest. Key shortening is disabled: separators and successors are the
// keys themselves, so every key pebble hands back to Compare is one the
// caller wrote.
func newComparer(c db.Comparer) *pebble.Comparer {
	compare := func(a, b []byte) int {
		// pebble uses empty user keys as unbounded sentinels
		switch {
		case len(a) == 0 && len(b) == 0:
			return 0
		case len(a) == 0:
			return -1
		case len(b) == 0:
			return 1
		}
		return c.Compare(a, b)
	}

	return &pebble.Comparer{
		Compare: compare,
		Equal: func(a, b []byte) bool {
			return compare(a, b) == 0
		},
		AbbreviatedKey: func(key []byte) uint64 {
			// constant, so pebble always falls back to Compare
			return 0
		},
		FormatKey: func(key []byte) fmt.Formatter {
			return keyFormatter{cmp: c, key: key}
		},
		Separator: func(dst, a, b []byte) []byte {
			return append(dst, a...)
		},
		Successor: func(dst, a []byte) []byte {
			return append(dst, a...)
		},
		// ImmediateSuccessor is only reached through NextPrefix and range
		// keys, neither of which this adapter uses. Appending a byte would
		// hand Compare a key of the wrong width.
		ImmediateSuccessor: func(dst, a []byte) []byte {
			return append(dst, a...)
		},
		// no key prefixes: SeekPrefixGE and NextPrefix are not supported
		Split: func(a []byte) int {
			return len(a)
		},
		Name: c.Name(),
	}
}

type keyFormatter struct {
	cmp db.Comparer
	key []byte
}

func (k keyFormatter) Format(s fmt.State, _ rune) {
	fmt.Fprint(s, db.FormatKey(k.cmp, k.key))
}
