package mapillary

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilecov/pkg/config"
	"tilecov/pkg/errors"
	"tilecov/pkg/logger"
	"tilecov/pkg/tiles"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

// Helper function to create a mock HTTP client
func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{
		Transport: &mockRoundTripper{handler: handler},
		Timeout:   30 * time.Second,
	}
}

// Helper function to create a response
func newResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func testConfig(baseURL string) config.MapillaryConfig {
	return config.MapillaryConfig{
		AccessToken:    "MLY|test|token",
		BaseURL:        baseURL,
		Tileset:        "mly1_public",
		Layer:          "image",
		RequestTimeout: 5 * time.Second,
	}
}

func TestNewClient(t *testing.T) {
	log := logger.NewTestLogger()
	client := NewClient(testConfig("https://tiles.example.test"), log)

	assert.NotNil(t, client)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.headers)
	assert.Equal(t, "https://tiles.example.test", client.baseURL)
	assert.Equal(t, log, client.logger)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(config.MapillaryConfig{
		AccessToken:    "MLY|test|token",
		RequestTimeout: time.Second,
	}, logger.NewTestLogger())

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultTileset, client.tileset)
	assert.Contains(t, client.headers["User-Agent"], "tilecov")
}

func TestSetHeaders(t *testing.T) {
	client := NewClient(testConfig(""), logger.NewTestLogger())

	t.Run("SetHeader", func(t *testing.T) {
		client.SetHeader("X-Custom-Header", "test-value")
		assert.Equal(t, "test-value", client.headers["X-Custom-Header"])
	})

	t.Run("SetHeaders", func(t *testing.T) {
		headers := map[string]string{
			"X-Header-1": "value1",
			"X-Header-2": "value2",
		}
		client.SetHeaders(headers)
		assert.Equal(t, "value1", client.headers["X-Header-1"])
		assert.Equal(t, "value2", client.headers["X-Header-2"])
	})
}

func TestFetchTile(t *testing.T) {
	log := logger.NewTestLogger()
	coord := tiles.Coord{Z: 14, X: 9326, Y: 4742}

	t.Run("successful fetch", func(t *testing.T) {
		tileBody := []byte("binary tile payload")

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/maps/vtp/mly1_public/2/14/9326/4742", r.URL.Path)
			assert.Equal(t, "MLY|test|token", r.URL.Query().Get("access_token"))
			assert.Contains(t, r.Header.Get("User-Agent"), "tilecov")
			w.WriteHeader(http.StatusOK)
			w.Write(tileBody)
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), log)

		data, err := client.FetchTile(context.Background(), coord)
		require.NoError(t, err)
		assert.Equal(t, tileBody, data)
	})

	t.Run("empty body is a valid result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), log)

		data, err := client.FetchTile(context.Background(), coord)
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("status mapping", func(t *testing.T) {
		tests := []struct {
			name         string
			statusCode   int
			expectedType errors.ErrorType
			retryable    bool
		}{
			{name: "429 rate limited", statusCode: http.StatusTooManyRequests, expectedType: errors.ErrorTypeRateLimited, retryable: true},
			{name: "500 server error", statusCode: http.StatusInternalServerError, expectedType: errors.ErrorTypeRetryableNetwork, retryable: true},
			{name: "502 bad gateway", statusCode: http.StatusBadGateway, expectedType: errors.ErrorTypeRetryableNetwork, retryable: true},
			{name: "503 unavailable", statusCode: http.StatusServiceUnavailable, expectedType: errors.ErrorTypeRetryableNetwork, retryable: true},
			{name: "504 gateway timeout", statusCode: http.StatusGatewayTimeout, expectedType: errors.ErrorTypeRetryableNetwork, retryable: true},
			{name: "404 not found", statusCode: http.StatusNotFound, expectedType: errors.ErrorTypeNotFound, retryable: false},
			{name: "403 forbidden", statusCode: http.StatusForbidden, expectedType: errors.ErrorTypeNonRetryable, retryable: false},
			{name: "401 unauthorized", statusCode: http.StatusUnauthorized, expectedType: errors.ErrorTypeNonRetryable, retryable: false},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.statusCode)
				}))
				defer server.Close()

				client := NewClient(testConfig(server.URL), log)

				data, err := client.FetchTile(context.Background(), coord)
				assert.Nil(t, data)
				require.Error(t, err)

				var typed *errors.Error
				require.ErrorAs(t, err, &typed)
				assert.Equal(t, tt.expectedType, typed.Type)
				assert.Equal(t, tt.statusCode, typed.Code)
				assert.Equal(t, tt.retryable, errors.IsRetryable(err))
			})
		}
	})

	t.Run("network error is retryable", func(t *testing.T) {
		client := NewClient(testConfig("http://example.test"), log)
		client.httpClient = newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
			return nil, stderrors.New("connection refused")
		})

		data, err := client.FetchTile(context.Background(), coord)
		assert.Nil(t, data)
		require.Error(t, err)

		var typed *errors.Error
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, errors.ErrorTypeRetryableNetwork, typed.Type)
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("cancelled context propagates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), log)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.FetchTile(ctx, coord)
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, context.Canceled))
	})
}

func TestVerifyToken(t *testing.T) {
	log := logger.NewTestLogger()

	t.Run("accepted token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/maps/vtp/mly1_public/2/0/0/0", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), log)
		assert.NoError(t, client.VerifyToken(context.Background()))
	})

	t.Run("rejected token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(testConfig(server.URL), log)

		err := client.VerifyToken(context.Background())
		require.Error(t, err)

		var typed *errors.Error
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, errors.ErrorTypeNonRetryable, typed.Type)
	})
}

func TestTileURL(t *testing.T) {
	client := NewClient(testConfig("https://tiles.example.test"), logger.NewTestLogger())

	url := client.TileURL(tiles.Coord{Z: 14, X: 1, Y: 2})
	assert.Equal(t, "https://tiles.example.test/maps/vtp/mly1_public/2/14/1/2?access_token=MLY%7Ctest%7Ctoken", url)
}
