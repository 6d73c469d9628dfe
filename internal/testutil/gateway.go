// Package testutil provides shared test doubles, chiefly an in-memory
// Gateway whose object tree and plane data are scripted per test.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/ome-contrib/omebatch/internal/omero"
)

// FakeImage is one scripted leaf image.
type FakeImage struct {
	ID    int64
	Name  string
	Dims  omero.PlaneDims
	Plane []float64 // returned for every (c,z,t) unless PlaneErr is set
	// PlaneErr fails every PlaneData call for this image.
	PlaneErr error
}

// FakeGateway is an in-memory Gateway over a scripted Project/Dataset/Image
// tree. Safe for concurrent use so pool tests can share one instance.
type FakeGateway struct {
	mu       sync.RWMutex
	projects map[int64][]int64 // project -> dataset IDs, insertion order
	datasets map[int64][]int64 // dataset -> image IDs, insertion order
	images   map[int64]*FakeImage
	closed   bool

	// PlaneCalls counts PlaneData invocations across all images.
	PlaneCalls int
}

// NewFakeGateway returns an empty gateway to script.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		projects: make(map[int64][]int64),
		datasets: make(map[int64][]int64),
		images:   make(map[int64]*FakeImage),
	}
}

// AddImage registers a leaf image with the given axis counts and plane data.
func (g *FakeGateway) AddImage(id int64, sizeC, sizeZ, sizeT int, plane []float64) *FakeImage {
	g.mu.Lock()
	defer g.mu.Unlock()
	img := &FakeImage{
		ID:    id,
		Name:  fmt.Sprintf("image-%d", id),
		Dims:  omero.PlaneDims{SizeC: sizeC, SizeZ: sizeZ, SizeT: sizeT},
		Plane: plane,
	}
	g.images[id] = img
	return img
}

// AddDataset registers a dataset containing the given images, in order.
func (g *FakeGateway) AddDataset(id int64, imageIDs ...int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.datasets[id] = append([]int64(nil), imageIDs...)
}

// AddProject registers a project containing the given datasets, in order.
func (g *FakeGateway) AddProject(id int64, datasetIDs ...int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.projects[id] = append([]int64(nil), datasetIDs...)
}

func (g *FakeGateway) Resolve(ctx context.Context, typeName string, id int64) (omero.Object, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch typeName {
	case omero.TypeProject:
		if _, ok := g.projects[id]; ok {
			return omero.Object{Type: typeName, ID: id}, nil
		}
	case omero.TypeDataset:
		if _, ok := g.datasets[id]; ok {
			return omero.Object{Type: typeName, ID: id}, nil
		}
	case omero.TypeImage:
		if img, ok := g.images[id]; ok {
			return omero.Object{Type: typeName, ID: id, Name: img.Name}, nil
		}
	}
	return omero.Object{}, &omero.NotFoundError{Type: typeName, ID: id}
}

func (g *FakeGateway) ListChildren(ctx context.Context, o omero.Object) ([]omero.Object, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch o.Type {
	case omero.TypeProject:
		ids, ok := g.projects[o.ID]
		if !ok {
			return nil, &omero.NotFoundError{Type: o.Type, ID: o.ID}
		}
		children := make([]omero.Object, len(ids))
		for i, id := range ids {
			children[i] = omero.Object{Type: omero.TypeDataset, ID: id}
		}
		return children, nil
	case omero.TypeDataset:
		ids, ok := g.datasets[o.ID]
		if !ok {
			return nil, &omero.NotFoundError{Type: o.Type, ID: o.ID}
		}
		children := make([]omero.Object, len(ids))
		for i, id := range ids {
			children[i] = omero.Object{Type: omero.TypeImage, ID: id}
		}
		return children, nil
	}
	return nil, fmt.Errorf("cannot list children of %s", o.Type)
}

func (g *FakeGateway) PlaneDims(ctx context.Context, image omero.Object) (omero.PlaneDims, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	img, ok := g.images[image.ID]
	if !ok {
		return omero.PlaneDims{}, &omero.NotFoundError{Type: omero.TypeImage, ID: image.ID}
	}
	return img.Dims, nil
}

func (g *FakeGateway) PlaneData(ctx context.Context, imageID int64, c, z, t int) ([]float64, error) {
	g.mu.Lock()
	g.PlaneCalls++
	g.mu.Unlock()

	g.mu.RLock()
	defer g.mu.RUnlock()
	img, ok := g.images[imageID]
	if !ok {
		return nil, &omero.NotFoundError{Type: omero.TypeImage, ID: imageID}
	}
	if img.PlaneErr != nil {
		return nil, img.PlaneErr
	}
	return img.Plane, nil
}

func (g *FakeGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
