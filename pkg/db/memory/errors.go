package memory

import (
	"errors"

	"github.com/eigerco/podmap/pkg/db"
)

var (
	ErrClosed          = db.ErrClosed
	ErrNotFound        = db.ErrNotFound
	ErrBatchDone       = db.ErrBatchDone
	ErrIteratorInvalid = db.ErrIteratorInvalid

	ErrNotExist = errors.New("memory: store does not exist")
	ErrLocked   = errors.New("memory: store is already open")
)

const (
	ErrComparerMismatch = "memory: store %s was created with comparer %q, not %q"
	ErrOutOfOrder       = "memory: key %s is not before %s"
)
