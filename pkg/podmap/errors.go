package podmap

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen     = errors.New("podmap: database is not open")
	ErrAlreadyOpen = errors.New("podmap: database is already open")
	ErrKeyNotFound = errors.New("podmap: key not found")
	ErrKeySize     = errors.New("podmap: key has the wrong width")

	ErrNoMigration   = errors.New("podmap: no migration registered")
	ErrCorruptHeader = errors.New("podmap: corrupt header")
	ErrCorruptExport = errors.New("podmap: corrupt export stream")
	ErrExportType    = errors.New("podmap: export holds a different map type")
)

// OpenError is returned when the directory cannot be created, the engine
// refuses to open or the upgrade hook fails.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("podmap: failure opening database %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// StorageError carries an engine failure other than a missing key.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("podmap: %s: database error: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DecodeError means stored bytes could not be turned back into a value.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("podmap: decode value: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UpgradeError wraps a failing upgrade hook. Open returns it inside an
// OpenError.
type UpgradeError struct {
	Path     string
	TypeName string
	Err      error
}

func (e *UpgradeError) Error() string {
	return fmt.Sprintf("podmap: upgrade %s to %s: %v", e.Path, e.TypeName, e.Err)
}

func (e *UpgradeError) Unwrap() error { return e.Err }
