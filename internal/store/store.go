// Package store implements the locked, atomic, idempotent publication
// protocol for per-plane feature files.
//
// Many worker processes may independently target the same plane, on this run
// or on overlapping concurrent runs. The protocol guarantees, using only
// filesystem primitives, that exactly one of them commits: writers stage
// output into a lock file next to the final path, hold a blocking exclusive
// flock on it while checking for committed output, and publish via atomic
// rename. A committed file is never rewritten; a zero-byte or missing final
// file counts as "not yet computed" so a crashed attempt is retried
// automatically with no manual cleanup.
package store

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/ome-contrib/omebatch/pkg/feature"
)

// Store publishes feature files for plane keys under a single root
// directory. The root is the only shared mutable resource between workers.
type Store struct {
	root string
}

// New returns a store rooted at dir, typically named after the feature set
// being computed.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Pending is scoped write access to one key's eventual output file, held
// under an exclusive lock. Every Pending must end in exactly one of
// Commit or Abort; callers defer Abort so all exit paths - error, panic or
// normal return - release the lock and never leak the staging file.
type Pending struct {
	key       feature.PlaneKey
	f         *os.File
	stagePath string
	finalPath string
	done      bool
}

// Begin derives the canonical location for key, takes the key's exclusive
// lock, and verifies no committed output exists yet.
//
// The lock is acquired before the existence check: two racing workers
// serialize here, so the loser either observes the winner's committed file
// (AlreadyComputedError) or, if the winner aborted, proceeds to compute.
// Returns an AlreadyComputedError when a non-empty final file exists.
func (s *Store) Begin(key feature.PlaneKey) (*Pending, error) {
	dir := key.Dir(s.root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		// MkdirAll tolerates concurrent creation; any error here is real.
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	stagePath := key.StagingPath(s.root)
	finalPath := key.Path(s.root)

	// Create-or-reuse: a staging file left by a crashed attempt is taken
	// over rather than treated as an obstacle.
	f, err := os.OpenFile(stagePath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", stagePath, err)
	}

	log.Printf("[Store] Locking: %s", stagePath)
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, &LockError{Path: stagePath, Err: err}
	}

	// Holding the lock, check for committed output.
	log.Printf("[Store] Checking: %s", finalPath)
	fi, err := os.Stat(finalPath)
	switch {
	case err == nil && fi.Size() > 0:
		// Another run already produced this result. Remove the staging file
		// (nothing was written) and release.
		removeQuiet(stagePath)
		f.Close()
		return nil, &AlreadyComputedError{Path: finalPath, Size: fi.Size()}
	case err == nil:
		// Zero-byte final file: treated as not yet computed, recompute.
	case errors.Is(err, fs.ErrNotExist):
		// Normal first-computation path.
	default:
		// Unexpected stat failure (permissions, I/O): not distinguishable
		// from corruption, so fail the key rather than guess.
		removeQuiet(stagePath)
		f.Close()
		return nil, fmt.Errorf("failed to check %s: %w", finalPath, err)
	}

	// Discard any partial data from a crashed attempt. Safe only now, under
	// the lock.
	if err := f.Truncate(0); err != nil {
		removeQuiet(stagePath)
		f.Close()
		return nil, fmt.Errorf("failed to truncate lock file %s: %w", stagePath, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		removeQuiet(stagePath)
		f.Close()
		return nil, fmt.Errorf("failed to rewind lock file %s: %w", stagePath, err)
	}

	return &Pending{key: key, f: f, stagePath: stagePath, finalPath: finalPath}, nil
}

// Commit writes the feature set to the locked staging file and atomically
// renames it to the canonical path. Concurrent readers see either no file or
// a complete file, never a partial one. The lock is released on return.
func (p *Pending) Commit(set *feature.Set) error {
	if p.done {
		return fmt.Errorf("commit on a finished handle")
	}

	log.Printf("[Store] Saving: %s", p.stagePath)
	w := bufio.NewWriter(p.f)
	if err := feature.Write(w, set); err != nil {
		return fmt.Errorf("failed to write feature set: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush feature set: %w", err)
	}
	if err := p.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", p.stagePath, err)
	}

	if err := os.Rename(p.stagePath, p.finalPath); err != nil {
		return fmt.Errorf("failed to publish %s: %w", p.finalPath, err)
	}
	p.done = true
	err := p.f.Close()
	log.Printf("[Store] Saved: %s", p.finalPath)
	return err
}

// Abort discards the staging file and releases the lock. A no-op after a
// successful Commit, so it is always safe to defer.
func (p *Pending) Abort() {
	if p.done {
		return
	}
	p.done = true
	log.Printf("[Store] Aborting, deleting: %s", p.stagePath)
	removeQuiet(p.stagePath)
	p.f.Close()
}

// Path returns the canonical final path this handle will commit to.
func (p *Pending) Path() string {
	return p.finalPath
}

// removeQuiet unlinks path, tolerating a file that is already gone (the
// staging path may have been renamed away by the committing winner of a
// lock race).
func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[Store] Failed to remove %s: %v", path, err)
	}
}
