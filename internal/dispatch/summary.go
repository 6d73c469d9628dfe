package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ome-contrib/omebatch/internal/worker"
)

// Summary is the write-once record of one run: every per-key outcome in
// completion order. It is the sole source of truth for what a run achieved.
type Summary struct {
	RunID      string           `json:"run_id"`
	FeatureSet string           `json:"feature_set,omitempty"`
	Pool       int              `json:"pool"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Outcomes   []worker.Outcome `json:"outcomes"`
}

// SummaryFilename returns the per-run output filename, out-YYYYMMDD-HHMMSS.json.
func SummaryFilename(now time.Time) string {
	return fmt.Sprintf("out-%s.json", now.Format("20060102-150405"))
}

// Counts tallies the outcomes by status.
func (s *Summary) Counts() (completed, alreadyComputed, failed int) {
	for _, o := range s.Outcomes {
		switch o.Status {
		case worker.StatusCompleted:
			completed++
		case worker.StatusAlreadyComputed:
			alreadyComputed++
		default:
			failed++
		}
	}
	return completed, alreadyComputed, failed
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

// LoadSummary reads a summary written by WriteFile.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &s, nil
}
