package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy of the index engine. Callers match with errors.Is.
var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrUndefinedQuery   = errors.New("query undefined for composite key")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrIO               = errors.New("index i/o failure")
)

// IOError reports a failed read or write of an index file.
// errors.Is(err, ErrIO) holds for every IOError.
type IOError struct {
	Op   string
	Path string
	Addr int32
	Err  error
}

func (e *IOError) Error() string {
	if e.Addr >= 0 {
		return fmt.Sprintf("%s %s page %d: %v", e.Op, e.Path, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// NewIOError wraps err as an IOError. Use addr -1 for whole-file operations.
func NewIOError(op, path string, addr int32, err error) error {
	return &IOError{Op: op, Path: path, Addr: addr, Err: err}
}
