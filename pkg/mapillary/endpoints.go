package mapillary

import (
	"fmt"
	"net/url"

	"tilecov/pkg/tiles"
)

const (
	// DefaultBaseURL is the production tile host
	DefaultBaseURL = "https://tiles.mapillary.com"

	// DefaultTileset is the public coverage tileset
	DefaultTileset = "mly1_public"

	// DefaultLayer is the vector tile layer holding image capture points
	DefaultLayer = "image"

	// MaxZoom is the deepest zoom the tile API serves
	MaxZoom = 22

	// tileEndpoint is the endpoint pattern for vector tiles
	tileEndpoint = "/maps/vtp/%s/2/%d/%d/%d"
)

// BuildTileURL constructs the URL for fetching one vector tile
func BuildTileURL(baseURL, tileset string, c tiles.Coord, token string) string {
	path := fmt.Sprintf(tileEndpoint, tileset, c.Z, c.X, c.Y)

	params := url.Values{}
	params.Set("access_token", token)

	return fmt.Sprintf("%s%s?%s", baseURL, path, params.Encode())
}

// RedactToken replaces the access token in a tile URL so the URL can be
// logged
func RedactToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// ValidCoord checks that a coordinate addresses a tile the API can serve
func ValidCoord(c tiles.Coord) bool {
	if c.Z < 0 || c.Z > MaxZoom {
		return false
	}

	n := 1 << uint(c.Z)
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}
