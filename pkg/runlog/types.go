// Package runlog provides an optional Redis-backed activity log for batch
// runs. A run registers itself when it starts, publishes one event per
// completed outcome, and marks itself finished; `omebatch watch` streams the
// events live from another terminal.
//
// The log is observability only. Correctness of the batch rests entirely on
// the filesystem publication protocol - a run with no Redis configured
// behaves identically apart from the missing events.
//
// All keys and channels are namespaced by instance name so several
// deployments can share one Redis server.
package runlog

import "fmt"

// RunStatus is the lifecycle state of a logged run.
type RunStatus string

const (
	// RunStatusRunning: the run is dispatching work.
	RunStatusRunning RunStatus = "running"

	// RunStatusFinished: all outcomes were collected and the summary
	// written.
	RunStatusFinished RunStatus = "finished"
)

// Run is the logged record of one batch run.
type Run struct {
	ID              string    `json:"id"`
	FeatureSet      string    `json:"feature_set"`
	Pool            int       `json:"pool"`
	Keys            int       `json:"keys"`
	Completed       int       `json:"completed"`
	AlreadyComputed int       `json:"already_computed"`
	Failed          int       `json:"failed"`
	Status          RunStatus `json:"status"`
	StartedAtMs     int64     `json:"started_at_ms"`
	FinishedAtMs    int64     `json:"finished_at_ms"`
}

// Validate checks the structural invariants of a run record.
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if r.Status != RunStatusRunning && r.Status != RunStatusFinished {
		return fmt.Errorf("invalid run status: %s", r.Status)
	}
	if r.Keys < 0 || r.Pool < 0 {
		return fmt.Errorf("negative key or pool count")
	}
	return nil
}

// EventKind classifies a run activity event.
type EventKind string

const (
	// EventRunStarted is published once when a run registers.
	EventRunStarted EventKind = "run_started"

	// EventOutcome is published once per collected per-key outcome.
	EventOutcome EventKind = "outcome"

	// EventRunFinished is published once when the run completes.
	EventRunFinished EventKind = "run_finished"
)

// Event is one activity record on a run's event channel.
type Event struct {
	RunID string    `json:"run_id"`
	Kind  EventKind `json:"kind"`
	// Key, Status and Error describe the outcome for EventOutcome events.
	Key    string `json:"key,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	AtMs   int64  `json:"at_ms"`
}
