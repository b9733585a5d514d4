package mapillary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"tilecov/pkg/config"
	errs "tilecov/pkg/errors"
	"tilecov/pkg/logger"
	"tilecov/pkg/tiles"
)

// Transport sizing for a worker pool hammering a single tile host.
const (
	maxIdleConns        = 512
	maxIdleConnsPerHost = 256
	idleConnTimeout     = 90 * time.Second
)

// Client fetches vector tiles from the Mapillary tile API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tileset    string
	token      string
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a tile API client. The configured timeout applies
// per request, so one stalled fetch cannot hold a worker forever.
func NewClient(cfg config.MapillaryConfig, log logger.Logger) *Client {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tileset := cfg.Tileset
	if tileset == "" {
		tileset = DefaultTileset
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "tilecov/1.0"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConnsPerHost,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
		headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/x-protobuf,application/octet-stream;q=0.9,*/*;q=0.8",
			// Set explicitly so the transport does not transparently
			// decompress; the decoder sniffs gzip itself.
			"Accept-Encoding": "gzip",
		},
		baseURL: baseURL,
		tileset: tileset,
		token:   cfg.AccessToken,
		logger:  log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// TileURL returns the request URL for a tile, token included.
func (c *Client) TileURL(coord tiles.Coord) string {
	return BuildTileURL(c.baseURL, c.tileset, coord, c.token)
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	// Set all headers
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	// Log the request
	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    RedactToken(req.URL.String()),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      RedactToken(req.URL.String()),
			"error":    err.Error(),
			"duration": duration,
		})
		// Timeouts and connection failures are worth retrying; a
		// cancelled context is filtered out by the retry policy.
		return nil, errs.Wrap(err, errs.ErrorTypeRetryableNetwork, "request failed")
	}

	// Log successful response
	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      RedactToken(req.URL.String()),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// FetchTile retrieves the raw vector tile body for a coordinate. A 200
// with an empty body is a valid result: the tile simply has no
// coverage. Non-200 statuses map onto the shared error taxonomy; the
// caller decides what to retry.
func (c *Client) FetchTile(ctx context.Context, coord tiles.Coord) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TileURL(coord), nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeConfig, "failed to build tile request")
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.WarnWithFields("tile request rejected", map[string]interface{}{
			"tile":   coord.String(),
			"status": resp.StatusCode,
		})
		return nil, errs.FromStatusCode(resp.StatusCode, fmt.Sprintf("tile %s request failed", coord))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeRetryableNetwork,
			fmt.Sprintf("failed to read tile %s body", coord))
	}

	c.logger.DebugWithFields("fetched tile", map[string]interface{}{
		"tile":  coord.String(),
		"bytes": len(data),
	})

	return data, nil
}

// VerifyToken makes a minimal tile request to check that the access
// token is accepted.
func (c *Client) VerifyToken(ctx context.Context) error {
	_, err := c.FetchTile(ctx, tiles.Coord{Z: 0, X: 0, Y: 0})
	return err
}
