//go:build unix

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// flockExclusive takes a blocking exclusive advisory lock on f. The lock is
// tied to the open file description and released when f is closed.
func flockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}
