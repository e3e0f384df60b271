package storage

import (
	"errors"
	"fmt"
)

// ErrLockTimeout is returned when the registry lock cannot be acquired
// within the configured wait. An unbounded wait would hang the caller on a
// stuck lock holder.
var ErrLockTimeout = errors.New("registry lock timeout")

// StorageError wraps backend I/O failures and tracking failures that could
// not be compensated.
type StorageError struct {
	Op   string // "store" | "promote" | "cleanup" | "delete"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %q: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
