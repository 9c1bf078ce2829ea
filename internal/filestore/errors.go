// Package filestore persists framed save payloads on the local
// filesystem and keeps a rotating set of timestamped backup copies.
package filestore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested file does not exist.
var ErrNotFound = errors.New("file not found")

// IOError wraps a filesystem failure with the operation and path
// that produced it.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("filestore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIOError checks if an error came from the filesystem layer
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
