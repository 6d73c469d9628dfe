package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRun(t *testing.T) {
	ctx := context.Background()

	t.Run("collects one result per command", func(t *testing.T) {
		pool := &Pool{Workers: 2}
		summary := pool.Run(ctx, [][]string{
			{"sh", "-c", "exit 0"},
			{"sh", "-c", "exit 0"},
			{"sh", "-c", "exit 3"},
		})
		require.Len(t, summary.Results, 3)
		assert.NotEmpty(t, summary.RunID)
		assert.Equal(t, 2, summary.Pool)

		completed, failed := summary.Counts()
		assert.Equal(t, 2, completed)
		assert.Equal(t, 1, failed)
	})

	t.Run("non-zero exit records the code", func(t *testing.T) {
		pool := &Pool{Workers: 1}
		summary := pool.Run(ctx, [][]string{{"sh", "-c", "exit 3"}})
		require.Len(t, summary.Results, 1)
		r := summary.Results[0]
		assert.Equal(t, StatusFailed, r.Status)
		assert.Equal(t, 3, r.ExitCode)
		assert.Contains(t, r.Error, "exited with code 3")
	})

	t.Run("missing binary fails without aborting the batch", func(t *testing.T) {
		pool := &Pool{Workers: 2}
		summary := pool.Run(ctx, [][]string{
			{"definitely-not-a-real-binary-omebatch"},
			{"sh", "-c", "exit 0"},
		})
		completed, failed := summary.Counts()
		assert.Equal(t, 1, completed)
		assert.Equal(t, 1, failed)
	})

	t.Run("empty command line is a failed result", func(t *testing.T) {
		pool := &Pool{Workers: 1}
		summary := pool.Run(ctx, [][]string{{}})
		require.Len(t, summary.Results, 1)
		assert.Equal(t, StatusFailed, summary.Results[0].Status)
	})

	t.Run("zero workers defaults to one", func(t *testing.T) {
		pool := &Pool{}
		summary := pool.Run(ctx, [][]string{{"sh", "-c", "exit 0"}})
		assert.Equal(t, 1, summary.Pool)
	})
}

func TestBatchSummaryWriteFile(t *testing.T) {
	summary := &Summary{
		RunID: "run-1",
		Pool:  2,
		Results: []Result{
			{Args: []string{"sh", "-c", "exit 0"}, Status: StatusCompleted},
		},
	}
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, summary.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Summary
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, summary.RunID, loaded.RunID)
	assert.Equal(t, summary.Results, loaded.Results)
}
