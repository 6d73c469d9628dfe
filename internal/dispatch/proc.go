package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/ome-contrib/omebatch/internal/worker"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

// Task is the unit of work sent to a worker process, one JSON object per
// line on its stdin. The worker answers with one worker.Outcome JSON line on
// its stdout per task.
type Task struct {
	Key feature.PlaneKey `json:"key"`
}

// maxOutcomeLine bounds a single outcome line read back from a worker.
const maxOutcomeLine = 1 << 20

// ProcPool runs the worker contract on N persistent OS worker processes.
// Each process is started once, establishes its own server connection from
// the session token in its argv, then serves tasks to completion one at a
// time until its stdin closes. Task results stream back in completion
// order.
type ProcPool struct {
	Workers int

	// Command builds the argv for one worker process, typically the running
	// binary's hidden worker subcommand carrying connection and store
	// settings.
	Command func(ctx context.Context) *exec.Cmd
}

func (p *ProcPool) Run(ctx context.Context, keys []feature.PlaneKey, emit func(worker.Outcome)) error {
	n := p.Workers
	if n < 1 {
		n = 1
	}

	tasks := make(chan feature.PlaneKey, len(keys))
	for _, k := range keys {
		tasks <- k
	}
	close(tasks)

	outcomes := make(chan worker.Outcome, len(keys))
	var started atomic.Int32
	var setupErr error
	var setupOnce sync.Once

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := p.runProc(ctx, id, tasks, outcomes, &started); err != nil {
				setupOnce.Do(func() { setupErr = err })
			}
		}(i)
	}
	wg.Wait()

	if started.Load() == 0 {
		if setupErr != nil {
			return fmt.Errorf("no worker process could start: %w", setupErr)
		}
		return fmt.Errorf("no worker process could start")
	}

	// A worker that died mid-run stops consuming; any keys it left behind
	// are reported as failed rather than silently dropped.
	for key := range tasks {
		outcomes <- worker.Outcome{
			Key:    key,
			Status: worker.StatusFailed,
			Error:  "no worker process available",
		}
	}
	close(outcomes)

	for o := range outcomes {
		emit(o)
	}
	return nil
}

// runProc drives one worker process: start it, feed it tasks one at a time,
// and read back outcomes. Returns an error only for startup failure; a
// process dying mid-run fails its in-flight task and stops this slot.
func (p *ProcPool) runProc(ctx context.Context, id int, tasks <-chan feature.PlaneKey, outcomes chan<- worker.Outcome, started *atomic.Int32) error {
	cmd := p.Command(ctx)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker process: %w", err)
	}
	started.Add(1)
	log.Printf("[Dispatch] Worker %d started (pid %d)", id, cmd.Process.Pid)

	defer func() {
		stdin.Close()
		if err := cmd.Wait(); err != nil {
			log.Printf("[Dispatch] Worker %d exited: %v", id, err)
		}
	}()

	enc := json.NewEncoder(stdin)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutcomeLine)

	for key := range tasks {
		if err := enc.Encode(Task{Key: key}); err != nil {
			outcomes <- failedOutcome(key, fmt.Errorf("failed to send task to worker %d: %w", id, err))
			return nil
		}
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			outcomes <- failedOutcome(key, fmt.Errorf("worker %d stopped responding: %w", id, err))
			return nil
		}
		var o worker.Outcome
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			outcomes <- failedOutcome(key, fmt.Errorf("bad outcome from worker %d: %w", id, err))
			return nil
		}
		outcomes <- o
	}
	return nil
}

func failedOutcome(key feature.PlaneKey, err error) worker.Outcome {
	return worker.Outcome{Key: key, Status: worker.StatusFailed, Error: err.Error()}
}

// ServeWorker is the worker-process side of the pool protocol: read Task
// lines from in, execute each to completion, write Outcome lines to out.
// Returns when in reaches EOF. Deps are built once by the caller - one
// gateway connection per process.
func ServeWorker(ctx context.Context, deps worker.Deps, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutcomeLine)
	bw := bufio.NewWriter(out)
	enc := json.NewEncoder(bw)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var task Task
		if err := json.Unmarshal(line, &task); err != nil {
			return fmt.Errorf("malformed task line: %w", err)
		}
		o := worker.Run(ctx, deps, task.Key)
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("failed to write outcome: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to flush outcome: %w", err)
		}
	}
	return scanner.Err()
}
