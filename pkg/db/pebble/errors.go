package pebble

import "github.com/eigerco/podmap/pkg/db"

var (
	ErrClosed          = db.ErrClosed
	ErrNotFound        = db.ErrNotFound
	ErrBatchDone       = db.ErrBatchDone
	ErrIteratorInvalid = db.ErrIteratorInvalid
)

const (
	ErrInIteratorCreation = "failed to create iterator: %w"
	ErrIteratorValue      = "failed to read iterator value: %w"
	ErrOpen               = "pebble: open %s: %w"
	ErrCheckLevels        = "pebble: consistency check: %w"
)
