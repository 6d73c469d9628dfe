package runlog

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting run records to and from Redis
// hashes. Counters live in individual hash fields so outcome recording can
// use HINCRBY instead of read-modify-write.

// RunToHash converts a Run to Redis hash format.
func RunToHash(r *Run) map[string]interface{} {
	return map[string]interface{}{
		"id":               r.ID,
		"feature_set":      r.FeatureSet,
		"pool":             r.Pool,
		"keys":             r.Keys,
		"completed":        r.Completed,
		"already_computed": r.AlreadyComputed,
		"failed":           r.Failed,
		"status":           string(r.Status),
		"started_at_ms":    r.StartedAtMs,
		"finished_at_ms":   r.FinishedAtMs,
	}
}

// HashToRun converts a Redis hash back to a Run.
func HashToRun(hash map[string]string) (*Run, error) {
	atoi := func(field string) (int, error) {
		if hash[field] == "" {
			return 0, nil
		}
		v, err := strconv.Atoi(hash[field])
		if err != nil {
			return 0, fmt.Errorf("invalid %s field: %w", field, err)
		}
		return v, nil
	}

	pool, err := atoi("pool")
	if err != nil {
		return nil, err
	}
	keys, err := atoi("keys")
	if err != nil {
		return nil, err
	}
	completed, err := atoi("completed")
	if err != nil {
		return nil, err
	}
	already, err := atoi("already_computed")
	if err != nil {
		return nil, err
	}
	failed, err := atoi("failed")
	if err != nil {
		return nil, err
	}

	startedAtMs, _ := strconv.ParseInt(hash["started_at_ms"], 10, 64)
	finishedAtMs, _ := strconv.ParseInt(hash["finished_at_ms"], 10, 64)

	return &Run{
		ID:              hash["id"],
		FeatureSet:      hash["feature_set"],
		Pool:            pool,
		Keys:            keys,
		Completed:       completed,
		AlreadyComputed: already,
		Failed:          failed,
		Status:          RunStatus(hash["status"]),
		StartedAtMs:     startedAtMs,
		FinishedAtMs:    finishedAtMs,
	}, nil
}
