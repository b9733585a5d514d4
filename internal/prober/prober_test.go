package prober

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"tilecov/pkg/config"
	"tilecov/pkg/mapillary"
	"tilecov/pkg/ratelimit"
	"tilecov/pkg/tiles"
)

// encodeTile builds a vector tile body with the given number of point
// features in the image layer.
func encodeTile(t *testing.T, points int) []byte {
	t.Helper()

	fc := geojson.NewFeatureCollection()
	for i := 0; i < points; i++ {
		lon := 24.9384 + float64(i)*0.0001
		fc.Append(geojson.NewFeature(orb.Point{lon, 60.1699}))
	}

	layers := mvt.NewLayers(map[string]*geojson.FeatureCollection{"image": fc})
	layers.ProjectToTile(maptile.At(orb.Point{24.9384, 60.1699}, 14))

	data, err := mvt.Marshal(layers)
	if err != nil {
		t.Fatalf("failed to encode fixture tile: %v", err)
	}
	return data
}

func fastRetry(maxAttempts int) config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts: maxAttempts,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
	}
}

// newTestProber wires a Prober against a stub tile server
func newTestProber(t *testing.T, handler http.HandlerFunc, retryCfg config.RetryConfig) *Prober {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := mapillary.NewClient(config.MapillaryConfig{
		AccessToken:    "MLY|103|test",
		BaseURL:        server.URL,
		Tileset:        "mly1_public",
		Layer:          "image",
		UserAgent:      "tilecov-test",
		RequestTimeout: 5 * time.Second,
	}, nil)

	return NewProber(client, tiles.NewDecoder("image"), ratelimit.NewPacer(5000), retryCfg, nil)
}

func TestProbeCoveredTile(t *testing.T) {
	body := encodeTile(t, 3)
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}, fastRetry(8))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 9330, Y: 4745})

	if !outcome.OK() {
		t.Fatalf("Expected ok outcome, got %q with detail %q", outcome.Status, outcome.Detail)
	}
	if !outcome.Covered {
		t.Error("Expected tile to be covered")
	}
	if outcome.Features != 3 {
		t.Errorf("Expected 3 features, got %d", outcome.Features)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", outcome.Attempts)
	}
	if outcome.HTTPStatus != http.StatusOK {
		t.Errorf("Expected HTTP status 200, got %d", outcome.HTTPStatus)
	}
}

func TestProbeUncoveredTile(t *testing.T) {
	body := encodeTile(t, 0)
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}, fastRetry(8))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 9330, Y: 4745})

	if !outcome.OK() {
		t.Fatalf("Expected ok outcome, got %q with detail %q", outcome.Status, outcome.Detail)
	}
	if outcome.Covered {
		t.Error("Expected tile to be uncovered")
	}
	if outcome.Features != 0 {
		t.Errorf("Expected 0 features, got %d", outcome.Features)
	}
}

func TestProbeEmptyBodyIsUncovered(t *testing.T) {
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, fastRetry(8))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 1, Y: 2})

	if !outcome.OK() {
		t.Fatalf("Expected ok outcome, got %q with detail %q", outcome.Status, outcome.Detail)
	}
	if outcome.Covered {
		t.Error("Expected empty tile body to count as uncovered")
	}
}

func TestProbeRetriesTransientErrors(t *testing.T) {
	body := encodeTile(t, 2)
	var requests int32
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	}, fastRetry(8))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 9330, Y: 4745})

	if !outcome.OK() {
		t.Fatalf("Expected ok outcome after retries, got %q with detail %q", outcome.Status, outcome.Detail)
	}
	if !outcome.Covered {
		t.Error("Expected tile to be covered")
	}
	if outcome.Attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", outcome.Attempts)
	}
	if got := atomic.LoadInt32(&requests); got != 4 {
		t.Errorf("Expected 4 requests, got %d", got)
	}
}

func TestProbeRateLimitedRetries(t *testing.T) {
	body := encodeTile(t, 1)
	var requests int32
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(body)
	}, fastRetry(8))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 5, Y: 6})

	if !outcome.OK() {
		t.Fatalf("Expected ok outcome after throttling, got %q with detail %q", outcome.Status, outcome.Detail)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", outcome.Attempts)
	}
}

func TestProbeExhaustsRetries(t *testing.T) {
	var requests int32
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, fastRetry(3))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 9330, Y: 4745})

	if outcome.OK() {
		t.Fatal("Expected failed outcome after exhausting retries")
	}
	if outcome.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", outcome.Attempts)
	}
	if got := atomic.LoadInt32(&requests); got != 3 {
		t.Errorf("Expected 3 requests, got %d", got)
	}
	if outcome.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("Expected HTTP status 503, got %d", outcome.HTTPStatus)
	}
	if !strings.Contains(outcome.Detail, "max retry attempts (3) exceeded") {
		t.Errorf("Expected exhaustion detail, got %q", outcome.Detail)
	}
}

func TestProbeDecodeFailureDoesNotRetry(t *testing.T) {
	var requests int32
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte("this is not a vector tile"))
	}, fastRetry(8))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 9330, Y: 4745})

	if outcome.OK() {
		t.Fatal("Expected failed outcome for malformed tile body")
	}
	if outcome.Attempts != 1 {
		t.Errorf("Expected 1 attempt for decode failure, got %d", outcome.Attempts)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("Expected 1 request for decode failure, got %d", got)
	}
	// The fetch itself succeeded
	if outcome.HTTPStatus != http.StatusOK {
		t.Errorf("Expected HTTP status 200, got %d", outcome.HTTPStatus)
	}
	if !strings.Contains(outcome.Detail, "decode") {
		t.Errorf("Expected decode detail, got %q", outcome.Detail)
	}
}

func TestProbeNotFoundDoesNotRetry(t *testing.T) {
	var requests int32
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}, fastRetry(8))

	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 9330, Y: 4745})

	if outcome.OK() {
		t.Fatal("Expected failed outcome for missing tile")
	}
	if outcome.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", outcome.Attempts)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
	if outcome.HTTPStatus != http.StatusNotFound {
		t.Errorf("Expected HTTP status 404, got %d", outcome.HTTPStatus)
	}
}

func TestProbeCancelledContext(t *testing.T) {
	var requests int32
	prober := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, fastRetry(8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := prober.Probe(ctx, tiles.Coord{Z: 14, X: 9330, Y: 4745})

	if outcome.OK() {
		t.Fatal("Expected failed outcome with cancelled context")
	}
	if outcome.Attempts != 1 {
		t.Errorf("Expected 1 attempt with cancelled context, got %d", outcome.Attempts)
	}
	if !strings.Contains(outcome.Detail, "context canceled") {
		t.Errorf("Expected cancellation detail, got %q", outcome.Detail)
	}
}

// Each retry attempt takes its own pacer slot, so a retried tile cannot
// burst past the configured rate.
func TestProbePacesEveryAttempt(t *testing.T) {
	body := encodeTile(t, 1)
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)

	client := mapillary.NewClient(config.MapillaryConfig{
		AccessToken:    "MLY|103|test",
		BaseURL:        server.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)

	// 50 rps puts 20ms between consecutive slots
	prober := NewProber(client, tiles.NewDecoder("image"), ratelimit.NewPacer(50), fastRetry(8), nil)

	start := time.Now()
	outcome := prober.Probe(context.Background(), tiles.Coord{Z: 14, X: 9330, Y: 4745})
	elapsed := time.Since(start)

	if !outcome.OK() {
		t.Fatalf("Expected ok outcome, got %q with detail %q", outcome.Status, outcome.Detail)
	}
	if outcome.Attempts != 4 {
		t.Fatalf("Expected 4 attempts, got %d", outcome.Attempts)
	}
	// Three paced gaps beyond the first slot
	if elapsed < 55*time.Millisecond {
		t.Errorf("Expected at least ~60ms of pacing across retries, took %v", elapsed)
	}
}
