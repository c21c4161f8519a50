package nodefs

import (
	"errors"
	"fmt"
)

// Common node and path errors
var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrNotExist     = errors.New("node does not exist")
	ErrExist        = errors.New("node already exists")
	ErrNotFile      = errors.New("not a file")
	ErrNotDir       = errors.New("not a directory")
	ErrNotLink      = errors.New("not a link")
	ErrIsDir        = errors.New("is a directory")
	ErrNotEmpty     = errors.New("directory not empty")
	ErrNotSupported = errors.New("operation not supported")
	ErrCyclic       = errors.New("cyclic link structure")
	ErrClosed       = errors.New("filesystem is closed")
	ErrReadOnly     = errors.New("filesystem is read-only")
	ErrIO           = errors.New("i/o failure")
	ErrNoSpace      = errors.New("no space left on device")
)

// PathError records an error and the operation and node path that caused it
type PathError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *PathError) Unwrap() error {
	return e.Err
}

// IsNotExist reports whether an error indicates that a node does not exist
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}

// IsExist reports whether an error indicates that a node already exists
func IsExist(err error) bool {
	return errors.Is(err, ErrExist)
}

// IsInvalidPath reports whether an error indicates a malformed or
// root-escaping path
func IsInvalidPath(err error) bool {
	return errors.Is(err, ErrInvalidPath)
}

// IsNotSupported reports whether an error indicates that the backend lacks
// the capability
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// IsCyclic reports whether an error indicates a link cycle detected during
// recursive listing
func IsCyclic(err error) bool {
	return errors.Is(err, ErrCyclic)
}
