package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped run log operations. All keys and channels
// are automatically namespaced with the instance name. The client is safe
// for concurrent use.
type Client struct {
	rdb      *redis.Client
	instance string
}

// NewClient creates a run log client for the given instance.
func NewClient(redisOpts *redis.Options, instance string) (*Client, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Client{
		rdb:      redis.NewClient(redisOpts),
		instance: instance,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// StartRun registers a new run, indexes it by start time, and publishes a
// run_started event.
func (c *Client) StartRun(ctx context.Context, runID, featureSet string, pool, keys int) error {
	now := time.Now().UnixMilli()
	run := &Run{
		ID:          runID,
		FeatureSet:  featureSet,
		Pool:        pool,
		Keys:        keys,
		Status:      RunStatusRunning,
		StartedAtMs: now,
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	key := RunKey(c.instance, runID)
	if err := c.rdb.HSet(ctx, key, RunToHash(run)).Err(); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	if err := c.rdb.ZAdd(ctx, RunsIndexKey(c.instance), redis.Z{
		Score:  float64(now),
		Member: runID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to index run: %w", err)
	}

	return c.publish(ctx, Event{RunID: runID, Kind: EventRunStarted, AtMs: now})
}

// RecordOutcome increments the run's counter for the outcome status and
// publishes an outcome event. Best-effort: an error leaves the run record
// behind but never blocks the batch.
func (c *Client) RecordOutcome(ctx context.Context, runID string, ev Event) error {
	ev.RunID = runID
	ev.Kind = EventOutcome
	ev.AtMs = time.Now().UnixMilli()

	field := counterField(ev.Status)
	key := RunKey(c.instance, runID)
	if err := c.rdb.HIncrBy(ctx, key, field, 1).Err(); err != nil {
		return fmt.Errorf("failed to update run counters: %w", err)
	}
	return c.publish(ctx, ev)
}

// FinishRun marks the run finished with its final tallies and publishes a
// run_finished event.
func (c *Client) FinishRun(ctx context.Context, runID string, completed, alreadyComputed, failed int) error {
	now := time.Now().UnixMilli()
	key := RunKey(c.instance, runID)
	err := c.rdb.HSet(ctx, key, map[string]interface{}{
		"status":           string(RunStatusFinished),
		"completed":        completed,
		"already_computed": alreadyComputed,
		"failed":           failed,
		"finished_at_ms":   now,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to finish run record: %w", err)
	}
	return c.publish(ctx, Event{RunID: runID, Kind: EventRunFinished, AtMs: now})
}

// GetRun retrieves a run record by ID.
// Returns (nil, redis.Nil) if the run doesn't exist.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	hash, err := c.rdb.HGetAll(ctx, RunKey(c.instance, runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}
	return HashToRun(hash)
}

// ListRuns returns all logged runs, oldest first.
func (c *Client) ListRuns(ctx context.Context) ([]*Run, error) {
	ids, err := c.rdb.ZRange(ctx, RunsIndexKey(c.instance), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*Run, 0, len(ids))
	for _, id := range ids {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			// Skip records that vanished or are malformed; the index is
			// advisory.
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAtMs < runs[j].StartedAtMs })
	return runs, nil
}

// Subscription is an active Pub/Sub subscription to run events. Callers
// must Close it when done; context cancellation also stops it.
type Subscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of run events.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeEvents subscribes to run activity events for this instance.
// Events are delivered on a buffered channel; Redis Pub/Sub is at-most-once,
// so a slow subscriber may miss events.
func (c *Client) SubscribeEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.instance))

	eventsChan := make(chan Event, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal run event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}
				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{events: eventsChan, errors: errorsChan, cancel: cancel}, nil
}

func (c *Client) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal run event: %w", err)
	}
	if err := c.rdb.Publish(ctx, EventsChannel(c.instance), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish run event: %w", err)
	}
	return nil
}

// counterField maps an outcome status string to its run-hash counter field.
func counterField(status string) string {
	switch status {
	case "completed":
		return "completed"
	case "already_computed":
		return "already_computed"
	default:
		return "failed"
	}
}
