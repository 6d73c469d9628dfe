// Package enumerate expands ordered container references into the flat
// sequence of plane keys to compute. Traversal is depth-first in the order
// references were supplied; each image contributes the row-major Cartesian
// product of its C, Z and T axes. A reference that cannot be resolved aborts
// the whole enumeration - skipping it would silently under-process the
// batch.
package enumerate

import (
	"context"
	"fmt"
	"log"

	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

// Enumerate walks refs and calls yield once per plane key, lazily and in
// deterministic order: references in supplied order, containers depth-first,
// then channel (outer), Z-section (middle), timepoint (inner) per image.
// A non-nil error from yield stops the walk and is returned unchanged.
func Enumerate(ctx context.Context, gw omero.Gateway, refs []omero.Ref, yield func(feature.PlaneKey) error) error {
	for _, ref := range refs {
		obj, err := gw.Resolve(ctx, ref.Type, ref.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", ref, err)
		}
		if err := walk(ctx, gw, obj, yield); err != nil {
			return err
		}
	}
	return nil
}

// walk descends from obj to its leaf images and yields their plane keys.
func walk(ctx context.Context, gw omero.Gateway, obj omero.Object, yield func(feature.PlaneKey) error) error {
	if obj.IsImage() {
		return yieldPlanes(ctx, gw, obj, yield)
	}

	log.Printf("[Enumerate] Expanding %s %d (%s)", obj.Type, obj.ID, obj.Name)
	children, err := gw.ListChildren(ctx, obj)
	if err != nil {
		return fmt.Errorf("failed to list children of %s %d: %w", obj.Type, obj.ID, err)
	}
	for _, child := range children {
		if err := walk(ctx, gw, child, yield); err != nil {
			return err
		}
	}
	return nil
}

// yieldPlanes emits every (c, z, t) combination of one image in row-major
// order.
func yieldPlanes(ctx context.Context, gw omero.Gateway, image omero.Object, yield func(feature.PlaneKey) error) error {
	dims, err := gw.PlaneDims(ctx, image)
	if err != nil {
		return fmt.Errorf("failed to get dimensions of image %d: %w", image.ID, err)
	}
	for c := 0; c < dims.SizeC; c++ {
		for z := 0; z < dims.SizeZ; z++ {
			for t := 0; t < dims.SizeT; t++ {
				if err := yield(feature.PlaneKey{Image: image.ID, C: c, Z: z, T: t}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Collect materializes the full enumeration into a slice. The process pool
// needs a known task count up front, so laziness deliberately stops at this
// boundary.
func Collect(ctx context.Context, gw omero.Gateway, refs []omero.Ref) ([]feature.PlaneKey, error) {
	var keys []feature.PlaneKey
	err := Enumerate(ctx, gw, refs, func(k feature.PlaneKey) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
