package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tilecov/pkg/checkpoint"
	"tilecov/pkg/config"
	"tilecov/pkg/logger"
	"tilecov/pkg/models"
	"tilecov/pkg/store"
	"tilecov/pkg/tiles"
)

// TestHelper provides common scaffolding for integration tests: a
// temporary workspace, an isolated run state directory and a mock tile
// server wired into a test configuration.
type TestHelper struct {
	t            *testing.T
	tileServer   *MockTileServer
	tempDir      string
	cleanupFuncs []func()
}

// NewTestHelper creates a test helper with a temporary workspace.
// Run state and reports are redirected into it so tests never touch
// the user's real data directory.
func NewTestHelper(t *testing.T) *TestHelper {
	tempDir, err := os.MkdirTemp("", "tilecov_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Setenv("XDG_DATA_HOME", filepath.Join(tempDir, "state"))

	h := &TestHelper{
		t:            t,
		tempDir:      tempDir,
		cleanupFuncs: []func(){},
	}
	h.AddCleanup(func() { os.RemoveAll(tempDir) })
	return h
}

// SetupTileServer starts the mock tile server
func (h *TestHelper) SetupTileServer() *MockTileServer {
	h.tileServer = NewMockTileServer()
	h.AddCleanup(h.tileServer.Close)
	return h.tileServer
}

// TempDir returns the temporary directory for test files
func (h *TestHelper) TempDir() string {
	return h.tempDir
}

// CreateTempSubDir creates a subdirectory in the temp workspace
func (h *TestHelper) CreateTempSubDir(name string) string {
	dir := filepath.Join(h.tempDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.t.Fatalf("Failed to create temp subdir: %v", err)
	}
	return dir
}

// AddCleanup registers a cleanup function to run at test end
func (h *TestHelper) AddCleanup(fn func()) {
	h.cleanupFuncs = append(h.cleanupFuncs, fn)
}

// Cleanup runs all registered cleanup functions in reverse order
func (h *TestHelper) Cleanup() {
	for i := len(h.cleanupFuncs) - 1; i >= 0; i-- {
		h.cleanupFuncs[i]()
	}
}

// CreateTestLogger creates a logger suitable for tests
func (h *TestHelper) CreateTestLogger() logger.Logger {
	return logger.NewTestLogger()
}

// CreateTestConfig builds a configuration pointed at the mock tile
// server, with timings tightened so tests run fast.
func (h *TestHelper) CreateTestConfig(server *MockTileServer) *config.Config {
	cfg := config.DefaultConfig()

	cfg.Mapillary.AccessToken = "MLY|4242|integration"
	cfg.Mapillary.BaseURL = server.URL()
	cfg.Mapillary.UserAgent = "tilecov-integration"
	cfg.Mapillary.RequestTimeout = 5 * time.Second

	// A fixed high rate keeps the pacer out of the way unless a test
	// wants it
	cfg.RateLimit.RequestsPerSecond = 500

	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BackoffBase = 10 * time.Millisecond
	cfg.Retry.BackoffCap = 50 * time.Millisecond

	cfg.Probe.BatchSize = 10
	cfg.Probe.Concurrency = 4

	cfg.Database.Path = filepath.Join(h.tempDir, "catalogue.db")
	cfg.Logging.Level = "error"

	return cfg
}

// OpenStore opens the catalogue configured in cfg. The caller owns the
// returned store and must close it; sqlite wants one writer at a time,
// so close it before handing the same path to a Runner.
func (h *TestHelper) OpenStore(cfg *config.Config) *store.GormStore {
	st, err := store.Open(cfg.Database, store.Options{
		KeepCoverageOnError: cfg.Probe.KeepCoverageOnError,
	}, logger.NewTestLogger())
	if err != nil {
		h.t.Fatalf("Failed to open catalogue store: %v", err)
	}
	return st
}

// SeedOccurrences inserts one occurrence per coordinate. Event dates
// descend in the order given, so a selection ranked by recency returns
// the tiles in this order.
func (h *TestHelper) SeedOccurrences(st *store.GormStore, coords ...tiles.Coord) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, coord := range coords {
		z, x, y := coord.Z, coord.X, coord.Y
		occ := models.Occurrence{
			ID:             fmt.Sprintf("occ-%03d", i+1),
			ScientificName: "Picea abies",
			Country:        "FI",
			EventDate:      base.Add(-time.Duration(i) * time.Hour),
			Lat:            60.17,
			Lon:            24.94,
			TileZ:          &z,
			TileX:          &x,
			TileY:          &y,
		}
		if err := st.DB.Create(&occ).Error; err != nil {
			h.t.Fatalf("Failed to seed occurrence %s: %v", occ.ID, err)
		}
	}
}

// SeedUntiledOccurrence inserts an occurrence carrying only a position,
// the shape a fresh catalogue import has before tiles are derived.
func (h *TestHelper) SeedUntiledOccurrence(st *store.GormStore, id string, lat, lon float64) {
	occ := models.Occurrence{
		ID:             id,
		ScientificName: "Picea abies",
		Country:        "FI",
		EventDate:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Lat:            lat,
		Lon:            lon,
	}
	if err := st.DB.Create(&occ).Error; err != nil {
		h.t.Fatalf("Failed to seed occurrence %s: %v", id, err)
	}
}

// LoadRunState reads the persisted run state for a checkpoint name
func (h *TestHelper) LoadRunState(name string) *checkpoint.RunState {
	mgr, err := checkpoint.NewManager(name)
	if err != nil {
		h.t.Fatalf("Failed to create checkpoint manager: %v", err)
	}
	state, err := mgr.Load()
	if err != nil {
		h.t.Fatalf("Failed to load run state %q: %v", name, err)
	}
	if state == nil {
		h.t.Fatalf("No run state found for %q", name)
	}
	return state
}

// RunStateExists reports whether a run state file exists for the name
func (h *TestHelper) RunStateExists(name string) bool {
	mgr, err := checkpoint.NewManager(name)
	if err != nil {
		h.t.Fatalf("Failed to create checkpoint manager: %v", err)
	}
	return mgr.Exists()
}

// ReportFiles lists the run report files written during the test
func (h *TestHelper) ReportFiles() []string {
	dataDir, err := checkpoint.DataDir()
	if err != nil {
		h.t.Fatalf("Failed to locate data directory: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dataDir, "reports", "*.json"))
	if err != nil {
		h.t.Fatalf("Failed to list report files: %v", err)
	}
	return matches
}

// AssertFileExists checks that a file exists
func (h *TestHelper) AssertFileExists(path string) {
	h.t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		h.t.Errorf("Expected file to exist: %s", path)
	}
}

// WaitForCondition waits for a condition with timeout
func (h *TestHelper) WaitForCondition(condition func() bool, timeout time.Duration, message string) {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.t.Fatalf("Timeout waiting for condition: %s", message)
}
