// Package feature provides the shared data types for per-plane feature
// computations: the PlaneKey that identifies one unit of work, the Set of
// computed feature values, and the on-disk archive format. The path scheme
// and archive layout are part of the tool's public contract - downstream
// analysis tooling locates and reloads feature files using nothing but the
// key fields.
package feature

import (
	"fmt"
	"path/filepath"
)

// PlaneKey identifies a single image plane: one image ID plus the channel,
// Z-section and timepoint indices. Two equal keys always derive the same
// storage location; distinct keys never collide.
type PlaneKey struct {
	Image int64 `json:"image"`
	C     int   `json:"c"`
	Z     int   `json:"z"`
	T     int   `json:"t"`
}

// String returns a compact human-readable form used in logs and summaries.
func (k PlaneKey) String() string {
	return fmt.Sprintf("image=%d c=%d z=%d t=%d", k.Image, k.C, k.Z, k.T)
}

// Dir returns the per-image directory for this key under root.
// Pattern: {root}/image{00000042}
func (k PlaneKey) Dir(root string) string {
	return filepath.Join(root, fmt.Sprintf("image%08d", k.Image))
}

// base returns the filename stem shared by the final and staging files.
func (k PlaneKey) base() string {
	return fmt.Sprintf("image%08d-c%04d-z%04d-t%04d", k.Image, k.C, k.Z, k.T)
}

// Path returns the canonical final file path for this key under root.
// This is a pure function of the key fields, required for idempotent reruns
// and for discoverability by other tooling.
func (k PlaneKey) Path(root string) string {
	return filepath.Join(k.Dir(root), k.base()+".json")
}

// StagingPath returns the lock/staging file path for this key under root.
// Output is written here under an exclusive lock and atomically renamed to
// Path on commit.
func (k PlaneKey) StagingPath(root string) string {
	return filepath.Join(k.Dir(root), k.base()+".tmp")
}

// Set is one computed feature vector: parallel name/value sequences plus a
// version tag identifying the algorithm that produced it. Immutable once
// produced.
type Set struct {
	Names   []string  `json:"names"`
	Values  []float64 `json:"values"`
	Version string    `json:"version"`
}

// Validate checks the structural invariants of a feature set.
func (s *Set) Validate() error {
	if len(s.Names) == 0 {
		return fmt.Errorf("feature set has no features")
	}
	if len(s.Names) != len(s.Values) {
		return fmt.Errorf("feature set name/value length mismatch: %d names, %d values",
			len(s.Names), len(s.Values))
	}
	if s.Version == "" {
		return fmt.Errorf("feature set version is required")
	}
	return nil
}
