package integration

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"tilecov/pkg/tiles"
)

// MockTileServer simulates the Mapillary vector tile endpoint for
// integration testing. Tiles registered with features serve a real
// encoded vector tile carrying that many points in the image layer;
// every other tile serves the empty 200 body the production service
// returns for areas without data.
type MockTileServer struct {
	server *httptest.Server

	mu             sync.RWMutex
	features       map[string]int
	errorResponses map[string]int
	errorBudgets   map[string]budgetedError
	delays         map[string]time.Duration
	tileHits       map[string]int
	gzipBodies     bool
	requireToken   bool
	rateLimitEvery int

	requestCount  int32
	rateLimitHits int32
}

// budgetedError forces a status code for a limited number of requests,
// after which the tile serves normally again.
type budgetedError struct {
	status    int
	remaining int
}

// NewMockTileServer creates and starts a mock tile server
func NewMockTileServer() *MockTileServer {
	s := &MockTileServer{
		features:       make(map[string]int),
		errorResponses: make(map[string]int),
		errorBudgets:   make(map[string]budgetedError),
		delays:         make(map[string]time.Duration),
		tileHits:       make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/maps/vtp/", s.handleTile)
	s.server = httptest.NewServer(mux)

	return s
}

// handleTile serves one vector tile request
func (s *MockTileServer) handleTile(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.requestCount, 1)

	coord, ok := parseTilePath(r.URL.Path)
	if !ok {
		s.sendError(w, http.StatusNotFound, "unknown tile path")
		return
	}
	key := coord.String()
	s.recordHit(key)

	if s.tokenRequired() && r.URL.Query().Get("access_token") == "" {
		s.sendError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	if s.shouldRateLimit() {
		atomic.AddInt32(&s.rateLimitHits, 1)
		s.sendError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if status, forced := s.takeForcedError(key); forced {
		s.sendError(w, status, "injected error")
		return
	}

	if delay := s.getDelay(key); delay > 0 {
		time.Sleep(delay)
	}

	count, registered := s.getFeatures(key)
	if !registered {
		// Tiles nobody registered behave like real no-data areas
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := encodeTileBody(coord, count)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to encode tile")
		return
	}

	w.Header().Set("Content-Type", "application/x-protobuf")
	if s.gzipEnabled() {
		w.Header().Set("Content-Encoding", "gzip")
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write(body)
		gz.Close()
		body = buf.Bytes()
	}
	w.Write(body)
}

// parseTilePath extracts the tile coordinate from a request path of the
// form /maps/vtp/{tileset}/2/{z}/{x}/{y}.
func parseTilePath(path string) (tiles.Coord, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) != 7 || parts[0] != "maps" || parts[1] != "vtp" || parts[3] != "2" {
		return tiles.Coord{}, false
	}

	z, errZ := strconv.Atoi(parts[4])
	x, errX := strconv.Atoi(parts[5])
	y, errY := strconv.Atoi(parts[6])
	if errZ != nil || errX != nil || errY != nil {
		return tiles.Coord{}, false
	}

	return tiles.Coord{Z: z, X: x, Y: y}, true
}

// encodeTileBody builds a vector tile with the given number of point
// features in the image layer, spread across the tile's extent.
func encodeTileBody(coord tiles.Coord, count int) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	tile := coord.ToMaptile()
	bound := tile.Bound()

	for i := 0; i < count; i++ {
		frac := (float64(i) + 0.5) / float64(count)
		lon := bound.Min[0] + (bound.Max[0]-bound.Min[0])*frac
		lat := bound.Min[1] + (bound.Max[1]-bound.Min[1])*0.5
		fc.Append(geojson.NewFeature(orb.Point{lon, lat}))
	}

	layers := mvt.NewLayers(map[string]*geojson.FeatureCollection{"image": fc})
	layers.ProjectToTile(tile)

	return mvt.Marshal(layers)
}

// sendError writes an error response in the tile service's JSON shape
func (s *MockTileServer) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, status)
}

// shouldRateLimit reports whether this request trips the configured
// every-nth rate limit. Zero disables limiting.
func (s *MockTileServer) shouldRateLimit() bool {
	s.mu.RLock()
	every := s.rateLimitEvery
	s.mu.RUnlock()

	if every <= 0 {
		return false
	}
	return atomic.LoadInt32(&s.requestCount)%int32(every) == 0
}

// takeForcedError consumes one forced failure for the tile, if any
func (s *MockTileServer) takeForcedError(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if budget, exists := s.errorBudgets[key]; exists {
		budget.remaining--
		if budget.remaining <= 0 {
			delete(s.errorBudgets, key)
		} else {
			s.errorBudgets[key] = budget
		}
		return budget.status, true
	}

	if status, exists := s.errorResponses[key]; exists {
		return status, true
	}
	return 0, false
}

func (s *MockTileServer) recordHit(key string) {
	s.mu.Lock()
	s.tileHits[key]++
	s.mu.Unlock()
}

func (s *MockTileServer) getDelay(key string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delays[key]
}

func (s *MockTileServer) getFeatures(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, ok := s.features[key]
	return count, ok
}

func (s *MockTileServer) gzipEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gzipBodies
}

func (s *MockTileServer) tokenRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requireToken
}

// SetTileFeatures registers a tile to serve an encoded vector tile with
// the given feature count. Zero features serves a tile whose image
// layer is present but empty.
func (s *MockTileServer) SetTileFeatures(coord tiles.Coord, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features[coord.String()] = count
}

// SetErrorResponse forces every request for the tile to fail with the
// given status until cleared
func (s *MockTileServer) SetErrorResponse(coord tiles.Coord, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorResponses[coord.String()] = status
}

// ClearErrorResponse removes a forced error for the tile
func (s *MockTileServer) ClearErrorResponse(coord tiles.Coord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errorResponses, coord.String())
}

// FailTimes forces the next n requests for the tile to fail with the
// given status, after which it serves normally.
func (s *MockTileServer) FailTimes(coord tiles.Coord, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorBudgets[coord.String()] = budgetedError{status: status, remaining: n}
}

// SetDelay makes successful responses for the tile take at least the
// given duration
func (s *MockTileServer) SetDelay(coord tiles.Coord, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[coord.String()] = delay
}

// EnableGzip makes the server compress tile bodies, as the production
// service does
func (s *MockTileServer) EnableGzip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gzipBodies = true
}

// RequireToken makes the server reject requests without an access_token
// query parameter
func (s *MockTileServer) RequireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireToken = true
}

// RateLimitEvery makes every nth request fail with 429. Zero disables
// rate limiting.
func (s *MockTileServer) RateLimitEvery(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitEvery = n
}

// URL returns the server's base URL
func (s *MockTileServer) URL() string {
	return s.server.URL
}

// TileURL returns the full request URL for a tile, token included
func (s *MockTileServer) TileURL(coord tiles.Coord, token string) string {
	return fmt.Sprintf("%s/maps/vtp/mly1_public/2/%d/%d/%d?access_token=%s",
		s.server.URL, coord.Z, coord.X, coord.Y, token)
}

// RequestCount returns the total number of tile requests served
func (s *MockTileServer) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// RequestsFor returns how many times the tile has been requested
func (s *MockTileServer) RequestsFor(coord tiles.Coord) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tileHits[coord.String()]
}

// RateLimitHits returns how many requests were answered with 429
func (s *MockTileServer) RateLimitHits() int {
	return int(atomic.LoadInt32(&s.rateLimitHits))
}

// ResetCounters zeroes the request and rate limit counters
func (s *MockTileServer) ResetCounters() {
	atomic.StoreInt32(&s.requestCount, 0)
	atomic.StoreInt32(&s.rateLimitHits, 0)
	s.mu.Lock()
	s.tileHits = make(map[string]int)
	s.mu.Unlock()
}

// Close shuts down the mock server
func (s *MockTileServer) Close() {
	s.server.Close()
}
