package runlog

import "fmt"

// Redis key pattern helpers
//
// Key pattern: omebatch:{instance}:run:{run_id}
// Index pattern: omebatch:{instance}:runs (ZSET scored by start time)
// Channel pattern: omebatch:{instance}:run_events

// RunKey returns the Redis key for a run record hash.
func RunKey(instance, runID string) string {
	return fmt.Sprintf("omebatch:%s:run:%s", instance, runID)
}

// RunsIndexKey returns the Redis key of the ZSET indexing runs by start
// time.
func RunsIndexKey(instance string) string {
	return fmt.Sprintf("omebatch:%s:runs", instance)
}

// EventsChannel returns the Pub/Sub channel carrying run activity events.
func EventsChannel(instance string) string {
	return fmt.Sprintf("omebatch:%s:run_events", instance)
}
