package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tilecov/pkg/checkpoint"
)

const maxErrorSamples = 10

// RunReport summarizes a completed probe run as a JSON sidecar
type RunReport struct {
	// Core identifiers
	RunID string `json:"run_id"`
	Zoom  int    `json:"zoom"`

	// Timestamps
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	// Tile counts
	Selected         int `json:"selected"`
	Probed           int `json:"probed"`
	Covered          int `json:"covered"`
	Uncovered        int `json:"uncovered"`
	Failed           int `json:"failed"`
	BatchesCommitted int `json:"batches_committed"`

	// Request stats
	Requests       int            `json:"requests"`
	Retries        int            `json:"retries"`
	StatusCounts   map[string]int `json:"status_counts,omitempty"`
	TilesPerSecond float64        `json:"tiles_per_second"`

	// Settings the run executed with
	Settings Settings `json:"settings"`

	// Outcome
	Completed    bool          `json:"completed"`
	Interrupted  bool          `json:"interrupted"`
	ErrorSamples []ErrorSample `json:"error_samples,omitempty"`
}

// Settings echoes the effective probe configuration
type Settings struct {
	RequestsPerMinute int     `json:"requests_per_minute"`
	SafetyFactor      float64 `json:"safety_factor"`
	Concurrency       int     `json:"concurrency"`
	BatchSize         int     `json:"batch_size"`
}

// ErrorSample captures one failed tile for the report
type ErrorSample struct {
	Tile   string `json:"tile"`
	Detail string `json:"detail"`
}

// FromRunState converts persisted run state to a report skeleton. Request
// stats and error samples are filled in by the runner afterwards.
func FromRunState(state *checkpoint.RunState) *RunReport {
	return &RunReport{
		RunID:            state.RunID,
		Zoom:             state.Zoom,
		StartedAt:        state.StartedAt,
		Selected:         state.Selected,
		Probed:           state.Processed,
		Covered:          state.Covered,
		Uncovered:        state.Uncovered,
		Failed:           state.Failed,
		BatchesCommitted: state.BatchesCommitted,
		Completed:        state.Completed,
		StatusCounts:     make(map[string]int),
	}
}

// CountStatus increments the counter for one HTTP status class
func (r *RunReport) CountStatus(class string) {
	if r.StatusCounts == nil {
		r.StatusCounts = make(map[string]int)
	}
	r.StatusCounts[class]++
}

// AddErrorSample records a failed tile, keeping only the first few
func (r *RunReport) AddErrorSample(tile, detail string) {
	if len(r.ErrorSamples) >= maxErrorSamples {
		return
	}
	r.ErrorSamples = append(r.ErrorSamples, ErrorSample{Tile: tile, Detail: detail})
}

// Finalize stamps the finish time and computes derived fields
func (r *RunReport) Finalize() {
	r.FinishedAt = time.Now()
	r.DurationSeconds = r.FinishedAt.Sub(r.StartedAt).Seconds()
	if r.DurationSeconds > 0 {
		r.TilesPerSecond = float64(r.Probed) / r.DurationSeconds
	}
}

// Save writes the report into the given directory and returns the path
func (r *RunReport) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, r.RunID+".report.json")

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

// Load reads a report from a JSON file
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return &r, nil
}

// Summary returns a one-line human-readable digest
func (r *RunReport) Summary() string {
	outcome := "completed"
	if r.Interrupted {
		outcome = "interrupted"
	} else if !r.Completed {
		outcome = "incomplete"
	}

	return fmt.Sprintf("run %s %s: %d tiles in %.1fs (%d covered, %d uncovered, %d failed)",
		shortID(r.RunID), outcome, r.Probed, r.DurationSeconds, r.Covered, r.Uncovered, r.Failed)
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// Prune removes the oldest reports from a directory, keeping the newest n
func Prune(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read report directory: %w", err)
	}

	type agedFile struct {
		path    string
		modTime time.Time
	}

	var reports []agedFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".report.json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		reports = append(reports, agedFile{
			path:    filepath.Join(dir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	if len(reports) <= keep {
		return nil
	}

	// Newest first, remove the tail
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].modTime.After(reports[j].modTime)
	})

	for _, old := range reports[keep:] {
		if err := os.Remove(old.path); err != nil {
			return fmt.Errorf("failed to remove old report %s: %w", old.path, err)
		}
	}

	return nil
}
