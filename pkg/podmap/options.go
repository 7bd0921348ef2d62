package podmap

import (
	"github.com/rs/zerolog"

	"github.com/eigerco/podmap/pkg/db"
	"github.com/eigerco/podmap/pkg/db/pebble"
)

const (
	defaultMaxOpenFiles = 64
	// minWriteBuffer keeps the memtable usable when the cache budget is tiny.
	minWriteBuffer = 256 << 10
)

type options struct {
	engine       db.Opener
	hook         UpgradeHook
	codec        any
	logger       *zerolog.Logger
	maxOpenFiles int
}

// Option configures a Map.
type Option func(*options)

// WithEngine replaces the storage engine, pebble by default.
func WithEngine(open db.Opener) Option {
	return func(o *options) {
		o.engine = open
	}
}

// WithUpgradeHook replaces TryUpgrade as the hook run on every open. A nil
// hook disables upgrades.
func WithUpgradeHook(hook UpgradeHook) Option {
	return func(o *options) {
		o.hook = hook
	}
}

// WithCodec sets the value codec. The codec must be a
// serialization.Codec of the map's value type.
func WithCodec(codec any) Option {
	return func(o *options) {
		o.codec = codec
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithMaxOpenFiles bounds the file descriptors the engine keeps open.
func WithMaxOpenFiles(n int) Option {
	return func(o *options) {
		o.maxOpenFiles = n
	}
}

func defaultOptions() options {
	return options{
		engine:       pebble.Open,
		hook:         TryUpgrade,
		maxOpenFiles: defaultMaxOpenFiles,
	}
}
