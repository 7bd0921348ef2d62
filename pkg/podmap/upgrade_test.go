package podmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/podmap/pkg/db"
	"github.com/eigerco/podmap/pkg/serialization/pack"
)

type magazine struct {
	Pages int32
	Issue int32
}

func (magazine) TypeName() string { return "magazine" }

type ledgerV1 struct {
	Balance uint32
}

func (ledgerV1) TypeName() string { return "ledger" }

type ledgerV2 struct {
	Balance uint64
}

func (ledgerV2) TypeName() string { return "ledger" }

type ledgerV3 struct {
	Balance uint64
	Memo    string
}

func (ledgerV3) TypeName() string { return "ledger.v3" }

// rewrite re-encodes every value of store with convert.
func rewrite[From, To any](convert func(From) To) Migration {
	return func(store db.KVStore) error {
		it, err := store.NewIterator(db.IterOptions{})
		if err != nil {
			return err
		}
		defer it.Close() //nolint:errcheck

		batch := store.NewBatch()
		defer batch.Close() //nolint:errcheck

		for ok := it.First(); ok; ok = it.Next() {
			raw, err := it.Value()
			if err != nil {
				return err
			}
			var from From
			if err := pack.Unmarshal(raw, &from); err != nil {
				return err
			}
			to, err := pack.Marshal(convert(from))
			if err != nil {
				return err
			}
			if err := batch.Put(it.Key(), to); err != nil {
				return err
			}
		}
		if err := it.Error(); err != nil {
			return err
		}
		return batch.Commit(true)
	}
}

func TestHeaderWrittenOnFirstOpen(t *testing.T) {
	dir := t.TempDir()
	m := New[uint64, book](Uint64Key{})
	require.NoError(t, m.Open(dir, true, 0))
	require.NoError(t, m.Close())

	h, err := ReadHeader(filepath.Join(dir, HeaderFile))
	require.NoError(t, err)
	assert.Equal(t, Header{Magic: headerMagic, TypeName: "book", ValueSize: 8}, h)

	_, err = os.Stat(filepath.Join(dir, HeaderFile+".tmp"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpgradeWithoutMigration(t *testing.T) {
	dir := t.TempDir()
	books := New[uint64, book](Uint64Key{})
	require.NoError(t, books.Open(dir, true, 0))
	require.NoError(t, books.Close())

	magazines := New[uint64, magazine](Uint64Key{})
	err := magazines.Open(dir, false, 0)

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	var upgradeErr *UpgradeError
	require.ErrorAs(t, err, &upgradeErr)
	assert.Equal(t, "magazine", upgradeErr.TypeName)
	assert.ErrorIs(t, err, ErrNoMigration)
	assert.False(t, magazines.IsOpen())

	// the engine was released, so books still open
	require.NoError(t, books.Open(dir, false, 0))
	require.NoError(t, books.Close())
}

func TestUpgradeRunsMigrations(t *testing.T) {
	RegisterMigration("ledger", 4, "ledger", 8, rewrite(func(v ledgerV1) ledgerV2 {
		return ledgerV2{Balance: uint64(v.Balance) * 100}
	}))
	RegisterMigration("ledger", 8, "ledger.v3", 24, rewrite(func(v ledgerV2) ledgerV3 {
		return ledgerV3{Balance: v.Balance, Memo: "migrated"}
	}))

	dir := t.TempDir()
	v1 := New[uint32, ledgerV1](Uint32Key{})
	require.NoError(t, v1.Open(dir, true, 0))
	require.NoError(t, v1.Store(1, ledgerV1{Balance: 7}, false))
	require.NoError(t, v1.Store(2, ledgerV1{Balance: 9}, true))
	require.NoError(t, v1.Close())

	// two layouts behind: both migrations run in order
	v3 := New[uint32, ledgerV3](Uint32Key{})
	require.NoError(t, v3.Open(dir, false, 0))
	defer v3.Close() //nolint:errcheck

	got, err := v3.Fetch(2)
	require.NoError(t, err)
	assert.Equal(t, ledgerV3{Balance: 900, Memo: "migrated"}, got)

	h, err := ReadHeader(filepath.Join(dir, HeaderFile))
	require.NoError(t, err)
	assert.Equal(t, "ledger.v3", h.TypeName)
	assert.Equal(t, uint64(24), h.ValueSize)
}

func TestCorruptHeader(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(data []byte) []byte
	}{
		{
			name:    "truncated",
			corrupt: func(data []byte) []byte { return data[:3] },
		},
		{
			name: "flipped_bit",
			corrupt: func(data []byte) []byte {
				data[2] ^= 0x01
				return data
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			m := New[uint64, book](Uint64Key{})
			require.NoError(t, m.Open(dir, true, 0))
			require.NoError(t, m.Close())

			path := filepath.Join(dir, HeaderFile)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, tc.corrupt(data), 0o644))

			err = m.Open(dir, false, 0)
			assert.ErrorIs(t, err, ErrCorruptHeader)
			assert.False(t, m.IsOpen())
		})
	}
}

func TestUpgradeHookDisabled(t *testing.T) {
	dir := t.TempDir()
	m := New[uint64, book](Uint64Key{}, WithUpgradeHook(nil))
	require.NoError(t, m.Open(dir, true, 0))
	require.NoError(t, m.Close())

	_, err := os.Stat(filepath.Join(dir, HeaderFile))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUpgradeHookArguments(t *testing.T) {
	var (
		gotDir  string
		gotName string
		gotSize uintptr
	)
	hook := func(dir string, store db.KVStore, typeName string, valueSize uintptr) error {
		gotDir, gotName, gotSize = dir, typeName, valueSize
		return store.Put([]byte("\x00\x00\x00\x00\x00\x00\x00\x01"), []byte{3, 0, 0, 0, 11, 0, 0, 0}, false)
	}

	dir := t.TempDir()
	m := New[uint64, book](Uint64Key{}, WithUpgradeHook(hook))
	require.NoError(t, m.Open(dir, true, 0))
	defer m.Close() //nolint:errcheck

	assert.Equal(t, dir, gotDir)
	assert.Equal(t, "book", gotName)
	assert.Equal(t, uintptr(8), gotSize)

	// writes made by the hook are visible once Open returns
	b, err := m.Fetch(1)
	require.NoError(t, err)
	assert.Equal(t, book{Pages: 3, PublishDate: 11}, b)
}

// syncRecorder notes which directories were synced.
type syncRecorder struct {
	vfs.FS
	synced []string
}

func (r *syncRecorder) OpenDir(name string) (vfs.File, error) {
	f, err := r.FS.OpenDir(name)
	if err != nil {
		return nil, err
	}
	return &syncedDir{File: f, name: name, r: r}, nil
}

type syncedDir struct {
	vfs.File
	name string
	r    *syncRecorder
}

func (d *syncedDir) Sync() error {
	d.r.synced = append(d.r.synced, d.name)
	return d.File.Sync()
}

func TestWriteHeaderSyncsDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, HeaderFile)
	rec := &syncRecorder{FS: vfs.Default}

	require.NoError(t, writeHeader(rec, path, layout{name: "book", size: 8}))
	assert.Equal(t, []string{dir}, rec.synced)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, "book", h.TypeName)
	assert.Equal(t, uint64(8), h.ValueSize)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
