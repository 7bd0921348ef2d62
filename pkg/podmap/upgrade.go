package podmap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/eigerco/podmap/pkg/db"
	"github.com/eigerco/podmap/pkg/log"
	"github.com/eigerco/podmap/pkg/serialization/pack"
)

// UpgradeHook runs once per Open, after the engine is up and before the map
// serves any operation. An error fails the Open.
type UpgradeHook func(dir string, store db.KVStore, typeName string, valueSize uintptr) error

// Migration rewrites the values of a store from one value layout to the next.
type Migration func(store db.KVStore) error

const (
	HeaderFile  = "PODMAP"
	headerMagic = "podmap/1"
)

// Header records which value layout a directory holds.
type Header struct {
	Magic     string
	TypeName  string
	ValueSize uint64
}

type layout struct {
	name string
	size uint64
}

type migrationStep struct {
	to layout
	fn Migration
}

var migrations = struct {
	sync.RWMutex
	steps map[layout]migrationStep
}{steps: make(map[layout]migrationStep)}

// RegisterMigration makes TryUpgrade move directories holding the layout
// (fromName, fromSize) to (toName, toSize) by running fn. Migrations chain:
// a directory two layouts behind is migrated twice.
func RegisterMigration(fromName string, fromSize uintptr, toName string, toSize uintptr, fn Migration) {
	migrations.Lock()
	defer migrations.Unlock()
	migrations.steps[layout{fromName, uint64(fromSize)}] = migrationStep{
		to: layout{toName, uint64(toSize)},
		fn: fn,
	}
}

// TryUpgrade is the default UpgradeHook. The first open writes a header
// describing the value layout; later opens compare against it and run the
// registered migrations when it differs.
func TryUpgrade(dir string, store db.KVStore, typeName string, valueSize uintptr) error {
	want := layout{typeName, uint64(valueSize)}
	path := filepath.Join(dir, HeaderFile)

	have, err := ReadHeader(path)
	if errors.Is(err, fs.ErrNotExist) {
		return writeHeader(vfs.Default, path, want)
	}
	if err != nil {
		return err
	}

	current := layout{have.TypeName, have.ValueSize}
	seen := map[layout]bool{}
	for current != want {
		if seen[current] {
			return fmt.Errorf("%w: migrations from %s/%d loop", ErrNoMigration, current.name, current.size)
		}
		seen[current] = true

		migrations.RLock()
		step, ok := migrations.steps[current]
		migrations.RUnlock()
		if !ok {
			return fmt.Errorf("%w: from %s/%d to %s/%d", ErrNoMigration, current.name, current.size, want.name, want.size)
		}

		log.Storage.Info().
			Str("dir", dir).
			Str("from", current.name).
			Str("to", step.to.name).
			Msg("migrating values")
		if err := step.fn(store); err != nil {
			return fmt.Errorf("migrate %s to %s: %w", current.name, step.to.name, err)
		}
		if err := writeHeader(vfs.Default, path, step.to); err != nil {
			return err
		}
		current = step.to
	}
	return nil
}

// ReadHeader loads and verifies a header file.
func ReadHeader(path string) (Header, error) {
	var h Header
	data, err := os.ReadFile(path)
	if err != nil {
		return h, err
	}
	if len(data) < 8 {
		return h, fmt.Errorf("%w: %s is %d bytes", ErrCorruptHeader, path, len(data))
	}

	body, sum := data[:len(data)-8], binary.LittleEndian.Uint64(data[len(data)-8:])
	if xxhash.Sum64(body) != sum {
		return h, fmt.Errorf("%w: %s checksum mismatch", ErrCorruptHeader, path)
	}
	if err := pack.Unmarshal(body, &h); err != nil {
		return h, fmt.Errorf("%w: %s: %v", ErrCorruptHeader, path, err)
	}
	if h.Magic != headerMagic {
		return h, fmt.Errorf("%w: %s has magic %q", ErrCorruptHeader, path, h.Magic)
	}
	return h, nil
}

// writeHeader replaces the header through a synced temporary file and syncs
// the directory after the rename, so a crash leaves either the old or the new
// header.
func writeHeader(fsys vfs.FS, path string, l layout) error {
	body, err := pack.Marshal(Header{Magic: headerMagic, TypeName: l.name, ValueSize: l.size})
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	var buf bytes.Buffer
	buf.Write(body)
	buf.Write(binary.LittleEndian.AppendUint64(nil, xxhash.Sum64(body)))

	tmp := path + ".tmp"
	f, err := fsys.Create(tmp)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("sync header: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close header: %w", err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		return fmt.Errorf("install header: %w", err)
	}

	d, err := fsys.OpenDir(fsys.PathDir(path))
	if err != nil {
		return fmt.Errorf("sync header dir: %w", err)
	}
	if err := d.Sync(); err != nil {
		d.Close() //nolint:errcheck
		return fmt.Errorf("sync header dir: %w", err)
	}
	return d.Close()
}
