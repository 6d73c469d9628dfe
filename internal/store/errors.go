package store

import (
	"errors"
	"fmt"
)

// AlreadyComputedError signals that the final feature file already exists
// and is non-empty. It is a control signal, not a failure: another worker or
// an earlier run already produced this result and existing output is
// authoritative.
type AlreadyComputedError struct {
	Path string
	Size int64
}

func (e *AlreadyComputedError) Error() string {
	return fmt.Sprintf("feature file already exists: %s (%d B)", e.Path, e.Size)
}

// IsAlreadyComputed reports whether err signals an existing committed result.
func IsAlreadyComputed(err error) bool {
	var ac *AlreadyComputedError
	return errors.As(err, &ac)
}

// LockError reports that the underlying lock primitive failed unexpectedly,
// for example on a filesystem without flock support. Fatal for the key.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("failed to lock %s: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}
