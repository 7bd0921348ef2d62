package podmap

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/podmap/pkg/serialization/pack"
)

const exportMagic = "podmap-export/1"

type exportHeader struct {
	Magic     string
	TypeName  string
	ValueSize uint64
	Comparer  string
}

type exportEntry struct {
	Key   []byte
	Value []byte
}

// Export writes every entry, in key order, as a zstd compressed stream. The
// stream is a header, one present-marked entry per key, an absent marker and
// the BLAKE2b-256 digest of everything before it.
func (m *Map[K, V]) Export(w io.Writer) error {
	c, err := m.Begin()
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("podmap: export: %w", err)
	}
	defer zw.Close() //nolint:errcheck // closing twice is a no-op
	digest, err := blake2b.New256(nil)
	if err != nil {
		return fmt.Errorf("podmap: export: %w", err)
	}
	enc := pack.NewEncoder(io.MultiWriter(zw, digest))

	header := exportHeader{
		Magic:     exportMagic,
		TypeName:  typeName[V](),
		ValueSize: uint64(valueSize[V]()),
		Comparer:  m.comparer.Name(),
	}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("podmap: export header: %w", err)
	}

	n := 0
	for ; c.Valid(); c.Next() {
		raw, err := c.h.it.Value()
		if err != nil {
			return &StorageError{Op: "export", Err: err}
		}
		if err := enc.Encode(&exportEntry{Key: c.h.it.Key(), Value: raw}); err != nil {
			return fmt.Errorf("podmap: export entry: %w", err)
		}
		n++
	}
	if err := c.Err(); err != nil {
		return err
	}
	if err := enc.Encode((*exportEntry)(nil)); err != nil {
		return fmt.Errorf("podmap: export trailer: %w", err)
	}
	if _, err := zw.Write(digest.Sum(nil)); err != nil {
		return fmt.Errorf("podmap: export trailer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("podmap: export: %w", err)
	}

	m.logger().Debug().Int("entries", n).Msg("exported")
	return nil
}

// Import reads a stream written by Export and stores its entries in one
// engine batch, overwriting existing keys. Nothing is written unless the
// whole stream decodes and its digest matches.
func (m *Map[K, V]) Import(r io.Reader, sync bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.store == nil {
		return 0, ErrNotOpen
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptExport, err)
	}
	defer zr.Close()

	digest, err := blake2b.New256(nil)
	if err != nil {
		return 0, fmt.Errorf("podmap: import: %w", err)
	}
	dec := pack.NewDecoder(io.TeeReader(zr, digest))

	var header exportHeader
	if err := dec.Decode(&header); err != nil {
		return 0, fmt.Errorf("%w: header: %v", ErrCorruptExport, err)
	}
	if header.Magic != exportMagic {
		return 0, fmt.Errorf("%w: magic %q", ErrCorruptExport, header.Magic)
	}
	if header.TypeName != typeName[V]() || header.ValueSize != uint64(valueSize[V]()) || header.Comparer != m.comparer.Name() {
		return 0, fmt.Errorf("%w: %s/%d ordered by %s", ErrExportType, header.TypeName, header.ValueSize, header.Comparer)
	}

	batch := m.store.NewBatch()
	defer batch.Close() //nolint:errcheck

	for {
		var entry *exportEntry
		if err := dec.Decode(&entry); err != nil {
			return 0, fmt.Errorf("%w: entry %d: %v", ErrCorruptExport, batch.Count(), err)
		}
		if entry == nil {
			break
		}
		if len(entry.Key) != m.keys.Size() {
			return 0, fmt.Errorf("%w: entry %d: %w", ErrCorruptExport, batch.Count(), ErrKeySize)
		}
		if _, err := m.decode(entry.Value); err != nil {
			return 0, err
		}
		if err := batch.Put(entry.Key, entry.Value); err != nil {
			return 0, &StorageError{Op: "import", Err: err}
		}
	}

	want := digest.Sum(nil)
	got := make([]byte, len(want))
	if _, err := io.ReadFull(zr, got); err != nil {
		return 0, fmt.Errorf("%w: digest: %v", ErrCorruptExport, err)
	}
	if !bytes.Equal(got, want) {
		return 0, fmt.Errorf("%w: digest mismatch", ErrCorruptExport)
	}
	var extra [1]byte
	if _, err := io.ReadFull(zr, extra[:]); !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: data after digest", ErrCorruptExport)
	}

	n := batch.Count()
	if err := batch.Commit(sync); err != nil {
		return 0, &StorageError{Op: "import", Err: err}
	}

	m.logger().Debug().Int("entries", n).Msg("imported")
	return n, nil
}
