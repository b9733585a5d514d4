package integration

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"

	"tilecov/pkg/checkpoint"
	"tilecov/pkg/config"
	errs "tilecov/pkg/errors"
	"tilecov/pkg/logger"
	"tilecov/pkg/mapillary"
	"tilecov/pkg/tiles"
	"tilecov/pkg/ui"
)

func TestMain(m *testing.M) {
	// Keep runner chrome and info logging out of the test output
	ui.SetQuietMode(true)
	logger.Initialize(&config.LoggingConfig{Level: "error"})
	os.Exit(m.Run())
}

// TestMockServerServesTiles checks that registered tiles decode to the
// configured feature count and everything else serves the empty body
// real no-data areas produce.
func TestMockServerServesTiles(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	server := helper.SetupTileServer()
	covered := tiles.Coord{Z: 14, X: 9326, Y: 4742}
	server.SetTileFeatures(covered, 3)

	decoder := tiles.NewDecoder("image")

	resp, err := http.Get(server.TileURL(covered, "MLY|4242|integration"))
	if err != nil {
		t.Fatalf("Failed to fetch covered tile: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read tile body: %v", err)
	}
	count, err := decoder.FeatureCount(body)
	if err != nil {
		t.Fatalf("Failed to decode tile body: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 features, got %d", count)
	}

	// An unregistered tile answers 200 with no body
	resp2, err := http.Get(server.TileURL(tiles.Coord{Z: 14, X: 1, Y: 1}, "MLY|4242|integration"))
	if err != nil {
		t.Fatalf("Failed to fetch empty tile: %v", err)
	}
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for empty tile, got %d", resp2.StatusCode)
	}
	body2, _ := io.ReadAll(resp2.Body)
	if len(body2) != 0 {
		t.Errorf("Expected empty body, got %d bytes", len(body2))
	}
}

// TestMockServerErrorInjection checks forced errors, both permanent and
// budgeted, and that clearing restores normal service.
func TestMockServerErrorInjection(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	server := helper.SetupTileServer()
	coord := tiles.Coord{Z: 14, X: 100, Y: 200}
	server.SetTileFeatures(coord, 1)
	url := server.TileURL(coord, "MLY|4242|integration")

	server.SetErrorResponse(coord, http.StatusInternalServerError)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", resp.StatusCode)
	}

	server.ClearErrorResponse(coord)
	resp, err = http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 after clearing error, got %d", resp.StatusCode)
	}

	// A budget of two failures expires on its own
	server.FailTimes(coord, http.StatusServiceUnavailable, 2)
	for i := 0; i < 2; i++ {
		resp, err = http.Get(url)
		if err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Request %d: expected status 503, got %d", i+1, resp.StatusCode)
		}
	}
	resp, err = http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 after budget expired, got %d", resp.StatusCode)
	}
}

// TestMockServerRateLimiting checks the every-nth 429 behavior
func TestMockServerRateLimiting(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	server := helper.SetupTileServer()
	server.RateLimitEvery(10)

	for i := 0; i < 20; i++ {
		resp, err := http.Get(server.TileURL(tiles.Coord{Z: 14, X: i, Y: 0}, "MLY|4242|integration"))
		if err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
		resp.Body.Close()
	}

	if hits := server.RateLimitHits(); hits != 2 {
		t.Errorf("Expected 2 rate limited requests out of 20, got %d", hits)
	}
	if count := server.RequestCount(); count != 20 {
		t.Errorf("Expected 20 requests counted, got %d", count)
	}
}

// TestClientAgainstMockServer drives the real tile client at the mock
// server and checks the error taxonomy end to end.
func TestClientAgainstMockServer(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	server := helper.SetupTileServer()
	cfg := helper.CreateTestConfig(server)
	client := mapillary.NewClient(cfg.Mapillary, logger.NewTestLogger())
	decoder := tiles.NewDecoder("image")
	ctx := context.Background()

	covered := tiles.Coord{Z: 14, X: 9326, Y: 4742}
	server.SetTileFeatures(covered, 5)

	data, err := client.FetchTile(ctx, covered)
	if err != nil {
		t.Fatalf("FetchTile failed: %v", err)
	}
	count, err := decoder.FeatureCount(data)
	if err != nil {
		t.Fatalf("Failed to decode fetched tile: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 features, got %d", count)
	}

	if err := client.VerifyToken(ctx); err != nil {
		t.Errorf("Expected token verification to pass, got %v", err)
	}

	missing := tiles.Coord{Z: 14, X: 7, Y: 7}
	server.SetErrorResponse(missing, http.StatusNotFound)
	_, err = client.FetchTile(ctx, missing)
	if err == nil {
		t.Fatal("Expected error for 404 tile")
	}
	if got := errs.TypeOf(err); got != errs.ErrorTypeNotFound {
		t.Errorf("Expected not_found error type, got %s", got)
	}

	throttled := tiles.Coord{Z: 14, X: 8, Y: 8}
	server.SetErrorResponse(throttled, http.StatusTooManyRequests)
	_, err = client.FetchTile(ctx, throttled)
	if err == nil {
		t.Fatal("Expected error for 429 tile")
	}
	if got := errs.TypeOf(err); got != errs.ErrorTypeRateLimited {
		t.Errorf("Expected rate_limited error type, got %s", got)
	}
}

// TestClientRejectedWithoutToken checks that a missing token surfaces
// as a non-retryable error.
func TestClientRejectedWithoutToken(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	server := helper.SetupTileServer()
	server.RequireToken()

	cfg := helper.CreateTestConfig(server)
	cfg.Mapillary.AccessToken = ""
	client := mapillary.NewClient(cfg.Mapillary, logger.NewTestLogger())

	err := client.VerifyToken(context.Background())
	if err == nil {
		t.Fatal("Expected token verification to fail without a token")
	}
	if got := errs.TypeOf(err); got != errs.ErrorTypeNonRetryable {
		t.Errorf("Expected non_retryable_network error type, got %s", got)
	}
}

// TestClientHandlesGzippedTiles checks that compressed bodies pass
// through the client untouched and the decoder sniffs them.
func TestClientHandlesGzippedTiles(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	server := helper.SetupTileServer()
	server.EnableGzip()

	cfg := helper.CreateTestConfig(server)
	client := mapillary.NewClient(cfg.Mapillary, logger.NewTestLogger())

	coord := tiles.Coord{Z: 14, X: 9326, Y: 4742}
	server.SetTileFeatures(coord, 4)

	data, err := client.FetchTile(context.Background(), coord)
	if err != nil {
		t.Fatalf("FetchTile failed: %v", err)
	}
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		t.Fatal("Expected the raw gzipped body, transport must not decompress")
	}

	count, err := tiles.NewDecoder("image").FeatureCount(data)
	if err != nil {
		t.Fatalf("Failed to decode gzipped tile: %v", err)
	}
	if count != 4 {
		t.Errorf("Expected 4 features, got %d", count)
	}
}

// TestCheckpointLifecycle walks a run state through start, batches,
// completion and deletion.
func TestCheckpointLifecycle(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup()

	mgr, err := checkpoint.NewManager("integration-lifecycle")
	if err != nil {
		t.Fatalf("Failed to create checkpoint manager: %v", err)
	}

	state, err := mgr.Start("run-lifecycle", 14)
	if err != nil {
		t.Fatalf("Failed to start run state: %v", err)
	}
	if !mgr.Exists() {
		t.Fatal("Expected run state file after start")
	}

	if err := mgr.RecordBatch(state, 10, 6, 3, 1); err != nil {
		t.Fatalf("Failed to record batch: %v", err)
	}
	if err := mgr.RecordBatch(state, 5, 2, 3, 0); err != nil {
		t.Fatalf("Failed to record batch: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Failed to load run state: %v", err)
	}
	if loaded.RunID != "run-lifecycle" {
		t.Errorf("Expected run ID run-lifecycle, got %s", loaded.RunID)
	}
	if loaded.Processed != 15 {
		t.Errorf("Expected 15 processed, got %d", loaded.Processed)
	}
	if loaded.Covered != 8 || loaded.Uncovered != 6 || loaded.Failed != 1 {
		t.Errorf("Unexpected tallies: covered=%d uncovered=%d failed=%d",
			loaded.Covered, loaded.Uncovered, loaded.Failed)
	}
	if loaded.BatchesCommitted != 2 {
		t.Errorf("Expected 2 batches committed, got %d", loaded.BatchesCommitted)
	}
	if loaded.Completed {
		t.Error("Run state must not be completed yet")
	}

	if err := mgr.Complete(state); err != nil {
		t.Fatalf("Failed to complete run state: %v", err)
	}
	loaded, err = mgr.Load()
	if err != nil {
		t.Fatalf("Failed to reload run state: %v", err)
	}
	if !loaded.Completed {
		t.Error("Expected run state to be completed")
	}

	if err := mgr.Delete(); err != nil {
		t.Fatalf("Failed to delete run state: %v", err)
	}
	if mgr.Exists() {
		t.Error("Expected run state file to be gone after delete")
	}
}
