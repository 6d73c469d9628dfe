// Package compute defines the feature-calculation seam. A Calculator turns
// one plane into a feature set; the algorithm itself is opaque to the rest
// of the pipeline. Calculators are selected by name so batch jobs can be
// parameterized with nothing but strings.
package compute

import (
	"context"
	"fmt"
	"sort"

	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

// Calculator computes the feature set for a single plane. Implementations
// take an image ID rather than a resolved object so that parameter sets stay
// serializable across the worker process boundary.
type Calculator interface {
	// Name identifies the calculator; it doubles as the output directory
	// name so different feature sets never collide on disk.
	Name() string

	// Compute fetches what it needs through gw and returns the features for
	// the plane identified by key.
	Compute(ctx context.Context, gw omero.Gateway, key feature.PlaneKey) (*feature.Set, error)
}

// Error reports a failed computation for one plane. Per-key failures are
// recorded in the run summary and never affect other keys.
type Error struct {
	Key feature.PlaneKey
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("computation failed for %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var registry = map[string]Calculator{}

// Register adds a calculator to the registry. Called from init; duplicate
// names panic because they indicate a programming error.
func Register(c Calculator) {
	if _, dup := registry[c.Name()]; dup {
		panic(fmt.Sprintf("compute: duplicate calculator %q", c.Name()))
	}
	registry[c.Name()] = c
}

// Lookup returns the calculator registered under name.
func Lookup(name string) (Calculator, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown feature set %q (available: %v)", name, Names())
	}
	return c, nil
}

// Names returns the registered calculator names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
