package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tilecov/pkg/checkpoint"
)

func sampleState() *checkpoint.RunState {
	return &checkpoint.RunState{
		RunID:            "8f14e45f-ceea-4e62-9d1c-61d0e41d4a30",
		Zoom:             14,
		StartedAt:        time.Now().Add(-30 * time.Second),
		Selected:         2000,
		Processed:        2000,
		Covered:          1240,
		Uncovered:        710,
		Failed:           50,
		BatchesCommitted: 1,
		Completed:        true,
	}
}

func TestFromRunState(t *testing.T) {
	r := FromRunState(sampleState())

	if r.RunID != "8f14e45f-ceea-4e62-9d1c-61d0e41d4a30" {
		t.Errorf("RunID mismatch: got %s", r.RunID)
	}
	if r.Zoom != 14 {
		t.Errorf("Zoom mismatch: got %d", r.Zoom)
	}
	if r.Probed != 2000 || r.Covered != 1240 || r.Uncovered != 710 || r.Failed != 50 {
		t.Errorf("Count mismatch: %+v", r)
	}
	if !r.Completed {
		t.Error("Expected completed report")
	}
}

func TestFinalize(t *testing.T) {
	r := FromRunState(sampleState())
	r.Finalize()

	if r.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set")
	}
	if r.DurationSeconds <= 0 {
		t.Errorf("DurationSeconds should be positive, got %f", r.DurationSeconds)
	}
	if r.TilesPerSecond <= 0 {
		t.Errorf("TilesPerSecond should be positive, got %f", r.TilesPerSecond)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	r := FromRunState(sampleState())
	r.Requests = 2130
	r.Retries = 130
	r.CountStatus("2xx")
	r.CountStatus("2xx")
	r.CountStatus("5xx")
	r.AddErrorSample("14/8186/5448", "retryable_network error (status 503)")
	r.Settings = Settings{
		RequestsPerMinute: 50000,
		SafetyFactor:      0.85,
		Concurrency:       200,
		BatchSize:         2000,
	}
	r.Finalize()

	path, err := r.Save(dir)
	if err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}
	if filepath.Base(path) != r.RunID+".report.json" {
		t.Errorf("Unexpected report filename: %s", path)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}

	if loaded.RunID != r.RunID {
		t.Errorf("RunID mismatch after roundtrip: got %s", loaded.RunID)
	}
	if loaded.Requests != 2130 || loaded.Retries != 130 {
		t.Errorf("Request stats mismatch: %+v", loaded)
	}
	if loaded.StatusCounts["2xx"] != 2 || loaded.StatusCounts["5xx"] != 1 {
		t.Errorf("Status counts mismatch: %v", loaded.StatusCounts)
	}
	if len(loaded.ErrorSamples) != 1 || loaded.ErrorSamples[0].Tile != "14/8186/5448" {
		t.Errorf("Error samples mismatch: %v", loaded.ErrorSamples)
	}
	if loaded.Settings.RequestsPerMinute != 50000 {
		t.Errorf("Settings mismatch: %+v", loaded.Settings)
	}
}

func TestErrorSampleCap(t *testing.T) {
	r := FromRunState(sampleState())

	for i := 0; i < maxErrorSamples+5; i++ {
		r.AddErrorSample("14/1/1", "some error")
	}

	if len(r.ErrorSamples) != maxErrorSamples {
		t.Errorf("Expected %d samples, got %d", maxErrorSamples, len(r.ErrorSamples))
	}
}

func TestSummary(t *testing.T) {
	r := FromRunState(sampleState())
	r.Finalize()

	s := r.Summary()
	if s == "" {
		t.Fatal("Summary should not be empty")
	}
	// Short run ID, not the full UUID
	if want := "run 8f14e45f completed"; len(s) < len(want) || s[:len(want)] != want {
		t.Errorf("Unexpected summary prefix: %s", s)
	}

	r.Interrupted = true
	if s := r.Summary(); s[:len("run 8f14e45f interrupted")] != "run 8f14e45f interrupted" {
		t.Errorf("Expected interrupted summary, got %s", s)
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()

	// Three reports with distinct mod times
	names := []string{"aaa.report.json", "bbb.report.json", "ccc.report.json"}
	base := time.Now().Add(-time.Hour)
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
		stamp := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatal(err)
		}
	}
	// A non-report file must survive
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Prune(dir, 2); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "aaa.report.json")); !os.IsNotExist(err) {
		t.Error("Oldest report should have been pruned")
	}
	for _, name := range []string{"bbb.report.json", "ccc.report.json", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to survive prune: %v", name, err)
		}
	}

	// Pruning a missing directory is a no-op
	if err := Prune(filepath.Join(dir, "missing"), 2); err != nil {
		t.Errorf("Prune of missing dir should be nil, got %v", err)
	}
}
