// Package omero models the capabilities this tool consumes from a remote
// OMERO-style image server: resolving container/image references, listing
// container children, and fetching plane dimensions and raw plane data.
// The Gateway interface is the seam between the pipeline and the server;
// webclient.go provides an HTTP JSON implementation and tests substitute an
// in-memory fake.
package omero

import (
	"context"
	"errors"
	"fmt"
)

// Object type names accepted in container references.
const (
	TypeProject = "Project"
	TypeDataset = "Dataset"
	TypeImage   = "Image"
)

// Ref is one ordered container reference from the command line: a type name
// plus a numeric ID.
type Ref struct {
	Type string
	ID   int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// Object is a resolved remote object. Images are leaves; Projects and
// Datasets are containers whose children are listed via the gateway.
type Object struct {
	Type string
	ID   int64
	Name string
}

// IsImage reports whether the object is a leaf image.
func (o Object) IsImage() bool {
	return o.Type == TypeImage
}

// PlaneDims holds the three coordinate axis counts of an image:
// channels, Z-sections, timepoints.
type PlaneDims struct {
	SizeC int
	SizeZ int
	SizeT int
}

// Gateway is the remote query capability consumed by the pipeline.
// Implementations must be safe for use by a single goroutine; each worker
// process owns its own gateway connection.
type Gateway interface {
	// Resolve looks up an object by type name and ID.
	// Returns a NotFoundError if the object does not exist.
	Resolve(ctx context.Context, typeName string, id int64) (Object, error)

	// ListChildren returns the direct children of a container in server
	// order (Project -> Datasets, Dataset -> Images).
	ListChildren(ctx context.Context, o Object) ([]Object, error)

	// PlaneDims returns the coordinate axis counts of an image.
	PlaneDims(ctx context.Context, image Object) (PlaneDims, error)

	// PlaneData fetches the raw pixel values of one plane.
	PlaneData(ctx context.Context, imageID int64, c, z, t int) ([]float64, error)

	// Close releases the gateway connection.
	Close() error
}

// NotFoundError reports that a referenced remote object does not exist.
// Enumeration treats this as fatal: a missing reference aborts the whole
// run rather than silently under-processing the batch.
type NotFoundError struct {
	Type string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unable to get object: %s %d", e.Type, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
