// Package dispatch fans plane keys out across a fixed-size pool of workers
// and collects exactly one outcome per key. The pool is made of OS worker
// processes by default (ProcPool) with an in-process goroutine variant
// (LocalPool) for single-process runs and tests. Outcomes arrive in
// completion order, not submission order; after all are collected the run
// summary is written.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/ome-contrib/omebatch/internal/worker"
	"github.com/ome-contrib/omebatch/pkg/feature"
	"github.com/ome-contrib/omebatch/pkg/runlog"
)

// Runner executes the worker contract once per key using a bounded pool,
// calling emit exactly once per input key from a single goroutine.
type Runner interface {
	Run(ctx context.Context, keys []feature.PlaneKey, emit func(worker.Outcome)) error
}

// Dispatcher owns one batch run: it drives the Runner over a fully
// materialized key list, optionally publishes progress to the run log, and
// writes the summary.
type Dispatcher struct {
	Runner     Runner
	FeatureSet string
	Pool       int

	// Log publishes run progress events when non-nil. Purely
	// observational: the filesystem protocol alone decides correctness.
	Log *runlog.Client
}

// Run executes the batch and returns the completed summary. The summary is
// produced even when every key failed; per-key failures never abort the
// run.
func (d *Dispatcher) Run(ctx context.Context, keys []feature.PlaneKey) (*Summary, error) {
	summary := &Summary{
		RunID:      uuid.New().String(),
		FeatureSet: d.FeatureSet,
		Pool:       d.Pool,
		StartedAt:  time.Now().UTC(),
	}

	log.Printf("[Dispatch] Starting run %s: %d keys, pool of %d", summary.RunID, len(keys), d.Pool)

	if d.Log != nil {
		if err := d.Log.StartRun(ctx, summary.RunID, d.FeatureSet, d.Pool, len(keys)); err != nil {
			// The run log is best-effort; a dead Redis must not stop a batch.
			log.Printf("[Dispatch] Run log unavailable: %v", err)
			d.Log = nil
		}
	}

	err := d.Runner.Run(ctx, keys, func(o worker.Outcome) {
		summary.Outcomes = append(summary.Outcomes, o)
		if d.Log != nil {
			d.Log.RecordOutcome(ctx, summary.RunID, runlog.Event{
				Kind:   runlog.EventOutcome,
				Key:    o.Key.String(),
				Status: string(o.Status),
				Error:  o.Error,
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("worker pool failed: %w", err)
	}
	if len(summary.Outcomes) != len(keys) {
		// Runner contract violation; fail loudly rather than write a
		// summary that silently under-reports the batch.
		return nil, fmt.Errorf("pool returned %d outcomes for %d keys", len(summary.Outcomes), len(keys))
	}

	summary.FinishedAt = time.Now().UTC()

	if d.Log != nil {
		completed, already, failed := summary.Counts()
		d.Log.FinishRun(ctx, summary.RunID, completed, already, failed)
	}

	completed, already, failed := summary.Counts()
	log.Printf("[Dispatch] Run %s finished: %d completed, %d already computed, %d failed",
		summary.RunID, completed, already, failed)
	return summary, nil
}
