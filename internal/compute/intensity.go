package compute

import (
	"context"
	"fmt"
	"math"

	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

// intensityVersion tags the intensity algorithm; bump on any change to the
// computed values so old and new results are distinguishable.
const intensityVersion = "0"

func init() {
	Register(Intensity{})
}

// Intensity is the builtin calculator: basic intensity statistics of one
// plane. It is deliberately cheap - its job is to exercise the full
// enumerate/dispatch/store pipeline, not to be a useful feature extractor.
type Intensity struct{}

func (Intensity) Name() string { return "Intensity" }

func (Intensity) Compute(ctx context.Context, gw omero.Gateway, key feature.PlaneKey) (*feature.Set, error) {
	data, err := gw.PlaneData(ctx, key.Image, key.C, key.Z, key.T)
	if err != nil {
		return nil, &Error{Key: key, Err: err}
	}
	if len(data) == 0 {
		return nil, &Error{Key: key, Err: fmt.Errorf("empty plane")}
	}

	min, max, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}

	return &feature.Set{
		Names:   []string{"min", "max", "mean"},
		Values:  []float64{min, max, sum / float64(len(data))},
		Version: intensityVersion,
	}, nil
}
