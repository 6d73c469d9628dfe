package enumerate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/internal/testutil"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

func TestCollectOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("images in a dataset, planes per image", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.AddImage(1, 2, 1, 1, nil)
		gw.AddImage(2, 1, 2, 1, nil)
		gw.AddDataset(10, 1, 2)

		keys, err := Collect(ctx, gw, []omero.Ref{{Type: omero.TypeDataset, ID: 10}})
		require.NoError(t, err)
		assert.Equal(t, []feature.PlaneKey{
			{Image: 1, C: 0, Z: 0, T: 0},
			{Image: 1, C: 1, Z: 0, T: 0},
			{Image: 2, C: 0, Z: 0, T: 0},
			{Image: 2, C: 0, Z: 1, T: 0},
		}, keys)
	})

	t.Run("channel outer, z middle, timepoint inner", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.AddImage(5, 2, 2, 2, nil)

		keys, err := Collect(ctx, gw, []omero.Ref{{Type: omero.TypeImage, ID: 5}})
		require.NoError(t, err)
		assert.Equal(t, []feature.PlaneKey{
			{Image: 5, C: 0, Z: 0, T: 0},
			{Image: 5, C: 0, Z: 0, T: 1},
			{Image: 5, C: 0, Z: 1, T: 0},
			{Image: 5, C: 0, Z: 1, T: 1},
			{Image: 5, C: 1, Z: 0, T: 0},
			{Image: 5, C: 1, Z: 0, T: 1},
			{Image: 5, C: 1, Z: 1, T: 0},
			{Image: 5, C: 1, Z: 1, T: 1},
		}, keys)
	})

	t.Run("references expand in supplied order", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.AddImage(1, 1, 1, 1, nil)
		gw.AddImage(2, 1, 1, 1, nil)
		gw.AddImage(3, 1, 1, 1, nil)
		gw.AddDataset(10, 2)
		gw.AddProject(100, 10)

		refs := []omero.Ref{
			{Type: omero.TypeImage, ID: 3},
			{Type: omero.TypeProject, ID: 100},
			{Type: omero.TypeImage, ID: 1},
		}
		keys, err := Collect(ctx, gw, refs)
		require.NoError(t, err)
		assert.Equal(t, []feature.PlaneKey{
			{Image: 3, C: 0, Z: 0, T: 0},
			{Image: 2, C: 0, Z: 0, T: 0},
			{Image: 1, C: 0, Z: 0, T: 0},
		}, keys)
	})

	t.Run("project expands depth-first through datasets", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.AddImage(1, 1, 1, 1, nil)
		gw.AddImage(2, 1, 1, 1, nil)
		gw.AddImage(3, 1, 1, 1, nil)
		gw.AddDataset(10, 1, 2)
		gw.AddDataset(11, 3)
		gw.AddProject(100, 10, 11)

		keys, err := Collect(ctx, gw, []omero.Ref{{Type: omero.TypeProject, ID: 100}})
		require.NoError(t, err)
		assert.Equal(t, []feature.PlaneKey{
			{Image: 1, C: 0, Z: 0, T: 0},
			{Image: 2, C: 0, Z: 0, T: 0},
			{Image: 3, C: 0, Z: 0, T: 0},
		}, keys)
	})

	t.Run("duplicate references yield duplicate keys", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.AddImage(1, 1, 1, 1, nil)

		keys, err := Collect(ctx, gw, []omero.Ref{
			{Type: omero.TypeImage, ID: 1},
			{Type: omero.TypeImage, ID: 1},
		})
		require.NoError(t, err)
		assert.Len(t, keys, 2)
		assert.Equal(t, keys[0], keys[1])
	})

	t.Run("zero-plane image contributes nothing", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.AddImage(1, 0, 1, 1, nil)
		gw.AddImage(2, 1, 1, 1, nil)
		gw.AddDataset(10, 1, 2)

		keys, err := Collect(ctx, gw, []omero.Ref{{Type: omero.TypeDataset, ID: 10}})
		require.NoError(t, err)
		assert.Equal(t, []feature.PlaneKey{{Image: 2, C: 0, Z: 0, T: 0}}, keys)
	})
}

func TestCollectMissingReference(t *testing.T) {
	ctx := context.Background()

	t.Run("unresolvable reference aborts the enumeration", func(t *testing.T) {
		gw := testutil.NewFakeGateway()
		gw.AddImage(1, 1, 1, 1, nil)

		keys, err := Collect(ctx, gw, []omero.Ref{
			{Type: omero.TypeImage, ID: 1},
			{Type: omero.TypeDataset, ID: 999},
		})
		require.Error(t, err)
		assert.True(t, omero.IsNotFound(err))
		assert.Nil(t, keys)
	})
}

func TestEnumerateYieldError(t *testing.T) {
	ctx := context.Background()
	gw := testutil.NewFakeGateway()
	gw.AddImage(1, 3, 1, 1, nil)

	sentinel := fmt.Errorf("stop here")
	var seen int
	err := Enumerate(ctx, gw, []omero.Ref{{Type: omero.TypeImage, ID: 1}}, func(feature.PlaneKey) error {
		seen++
		if seen == 2 {
			return sentinel
		}
		return nil
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, seen, "walk stops at the failing yield")
}
