package worker

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-contrib/omebatch/internal/compute"
	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/internal/store"
	"github.com/ome-contrib/omebatch/internal/testutil"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

// panicCalc simulates a calculator bug.
type panicCalc struct{}

func (panicCalc) Name() string { return "Panic" }
func (panicCalc) Compute(context.Context, omero.Gateway, feature.PlaneKey) (*feature.Set, error) {
	panic("boom")
}

func newDeps(t *testing.T) (Deps, *testutil.FakeGateway) {
	t.Helper()
	gw := testutil.NewFakeGateway()
	calc, err := compute.Lookup("Intensity")
	require.NoError(t, err)
	return Deps{
		Store:   store.New(t.TempDir()),
		Gateway: gw,
		Calc:    calc,
	}, gw
}

func TestRunCompleted(t *testing.T) {
	deps, gw := newDeps(t)
	gw.AddImage(1, 1, 1, 1, []float64{0, 255, 127.5})
	key := feature.PlaneKey{Image: 1}

	out := Run(context.Background(), deps, key)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.Empty(t, out.Error)
	assert.Equal(t, key, out.Key)

	set, err := feature.Load(key.Path(deps.Store.Root()))
	require.NoError(t, err)
	assert.Equal(t, []string{"min", "max", "mean"}, set.Names)
}

func TestRunAlreadyComputed(t *testing.T) {
	deps, gw := newDeps(t)
	gw.AddImage(1, 1, 1, 1, []float64{1, 2, 3})
	key := feature.PlaneKey{Image: 1}

	first := Run(context.Background(), deps, key)
	require.Equal(t, StatusCompleted, first.Status)

	second := Run(context.Background(), deps, key)
	assert.Equal(t, StatusAlreadyComputed, second.Status)
	assert.Empty(t, second.Error)

	t.Run("skip fetches no plane data", func(t *testing.T) {
		assert.Equal(t, 1, gw.PlaneCalls)
	})
}

func TestRunComputeFailure(t *testing.T) {
	deps, gw := newDeps(t)
	img := gw.AddImage(1, 1, 1, 1, nil)
	img.PlaneErr = fmt.Errorf("plane fetch exploded")
	key := feature.PlaneKey{Image: 1}

	out := Run(context.Background(), deps, key)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Error, "plane fetch exploded")

	t.Run("no output is published", func(t *testing.T) {
		_, err := os.Stat(key.Path(deps.Store.Root()))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("no staging file leaks", func(t *testing.T) {
		_, err := os.Stat(key.StagingPath(deps.Store.Root()))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("failed key can be retried", func(t *testing.T) {
		img.PlaneErr = nil
		img.Plane = []float64{9}
		out := Run(context.Background(), deps, key)
		assert.Equal(t, StatusCompleted, out.Status)
	})
}

func TestRunPanicRecovery(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Calc = panicCalc{}
	key := feature.PlaneKey{Image: 1}

	out := Run(context.Background(), deps, key)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Error, "panic: boom")

	t.Run("lock and staging file are released", func(t *testing.T) {
		_, err := os.Stat(key.StagingPath(deps.Store.Root()))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestRunUnknownImage(t *testing.T) {
	deps, _ := newDeps(t)
	key := feature.PlaneKey{Image: 404}

	out := Run(context.Background(), deps, key)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Contains(t, out.Error, "unable to get object")
}
