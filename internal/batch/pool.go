package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status classifies one executed command line.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result records the outcome of one command line.
type Result struct {
	Args     []string `json:"args"`
	Status   Status   `json:"status"`
	ExitCode int      `json:"exit_code"`
	Error    string   `json:"error,omitempty"`
}

// Summary is the write-once record of one replay run, in completion order.
type Summary struct {
	RunID      string    `json:"run_id"`
	Pool       int       `json:"pool"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Counts tallies results by status.
func (s *Summary) Counts() (completed, failed int) {
	for _, r := range s.Results {
		if r.Status == StatusCompleted {
			completed++
		} else {
			failed++
		}
	}
	return completed, failed
}

// WriteFile persists the summary as indented JSON.
func (s *Summary) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// Pool executes command lines across up to Workers concurrent local
// processes. A non-zero exit records a failed result; it never aborts the
// other commands.
type Pool struct {
	Workers int
}

// Run executes all command lines and returns the completed summary with one
// result per command, in completion order.
func (p *Pool) Run(ctx context.Context, cmds [][]string) *Summary {
	n := p.Workers
	if n < 1 {
		n = 1
	}

	summary := &Summary{
		RunID:     uuid.New().String(),
		Pool:      n,
		StartedAt: time.Now().UTC(),
	}

	tasks := make(chan []string, len(cmds))
	for _, c := range cmds {
		tasks <- c
	}
	close(tasks)

	results := make(chan Result, len(cmds))
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for args := range tasks {
				results <- runOne(ctx, args)
			}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		summary.Results = append(summary.Results, r)
	}
	summary.FinishedAt = time.Now().UTC()
	return summary
}

// runOne executes a single command line, inheriting stdout/stderr so the
// command's own output interleaves with the run log.
func runOne(ctx context.Context, args []string) Result {
	if len(args) == 0 {
		return Result{Args: args, Status: StatusFailed, ExitCode: -1, Error: "empty command"}
	}

	log.Printf("[Batch] Running: %v", args)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return Result{Args: args, Status: StatusCompleted}
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		return Result{
			Args:     args,
			Status:   StatusFailed,
			ExitCode: exitErr.ExitCode(),
			Error:    fmt.Sprintf("process exited with code %d", exitErr.ExitCode()),
		}
	}
	return Result{Args: args, Status: StatusFailed, ExitCode: -1, Error: err.Error()}
}
