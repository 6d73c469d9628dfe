// Package worker executes one unit of work: begin the store protocol for a
// plane key, run the calculator, and commit or abort. Every failure is
// converted into a Failed outcome - one bad plane never terminates the
// batch.
package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/ome-contrib/omebatch/internal/compute"
	"github.com/ome-contrib/omebatch/internal/omero"
	"github.com/ome-contrib/omebatch/internal/store"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

// Status classifies the outcome of one plane.
type Status string

const (
	// StatusCompleted: this worker computed and committed the result.
	StatusCompleted Status = "completed"

	// StatusAlreadyComputed: a committed result already existed; no work
	// was needed. Not a failure.
	StatusAlreadyComputed Status = "already_computed"

	// StatusFailed: computation or publication failed for this plane.
	StatusFailed Status = "failed"
)

// Outcome is the per-key result record collected into the run summary.
// Error keeps the message chain of the cause for post-run diagnosis.
type Outcome struct {
	Key    feature.PlaneKey `json:"key"`
	Status Status           `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// Deps bundles the collaborators one worker needs. Each worker process
// constructs its own Deps from configuration - gateway connections are never
// shared across processes.
type Deps struct {
	Store   *store.Store
	Gateway omero.Gateway
	Calc    compute.Calculator
}

// Run executes begin -> compute -> commit for key, or begin -> abort on any
// error, and classifies the result. It never returns an error or panics:
// all failures, including panics from the compute step, become a Failed
// outcome.
func Run(ctx context.Context, deps Deps, key feature.PlaneKey) (out Outcome) {
	out = Outcome{Key: key, Status: StatusFailed}
	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusFailed
			out.Error = fmt.Sprintf("panic: %v", r)
			log.Printf("[Worker] Panic computing %s: %v", key, r)
		}
	}()

	pending, err := deps.Store.Begin(key)
	if err != nil {
		if store.IsAlreadyComputed(err) {
			log.Printf("[Worker] Skipping %s: %v", key, err)
			out.Status = StatusAlreadyComputed
			return out
		}
		out.Error = err.Error()
		log.Printf("[Worker] Failed to begin %s: %v", key, err)
		return out
	}
	// Abort is a no-op after Commit; deferring it guarantees the lock and
	// staging file are released on every exit path.
	defer pending.Abort()

	log.Printf("[Worker] Calculating features for %s", key)
	set, err := deps.Calc.Compute(ctx, deps.Gateway, key)
	if err != nil {
		out.Error = err.Error()
		log.Printf("[Worker] Failed to compute %s: %v", key, err)
		return out
	}

	if err := pending.Commit(set); err != nil {
		out.Error = err.Error()
		log.Printf("[Worker] Failed to commit %s: %v", key, err)
		return out
	}

	out.Status = StatusCompleted
	out.Error = ""
	return out
}
