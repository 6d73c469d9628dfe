package feature

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Archive serialization for feature sets.
//
// A feature file is a single self-describing JSON object with three named
// fields (names, values, version). encoding/json emits the shortest decimal
// representation that round-trips each float64 exactly, so values reload
// with no precision loss.

// Write serializes the set to w. The caller owns flushing/syncing.
func Write(w io.Writer, s *Set) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid feature set: %w", err)
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode feature set: %w", err)
	}
	return nil
}

// Read deserializes a feature set from r and validates it.
func Read(r io.Reader) (*Set, error) {
	var s Set
	dec := json.NewDecoder(r)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode feature set: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature set: %w", err)
	}
	return &s, nil
}

// Load reads a committed feature file from disk.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature file: %w", err)
	}
	defer f.Close()
	return Read(f)
}
