package tiles

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Web Mercator cuts off just past 85 degrees; latitudes beyond it are
// clamped onto the first or last tile row.
const mercatorLatLimit = 85.0511

// Coord identifies a single XYZ tile.
type Coord struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// String renders the coordinate as "z/x/y".
func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// ToMaptile converts the coordinate to its orb representation.
func (c Coord) ToMaptile() maptile.Tile {
	return maptile.New(uint32(c.X), uint32(c.Y), maptile.Zoom(c.Z))
}

// FromMaptile converts an orb tile back to a Coord.
func FromMaptile(t maptile.Tile) Coord {
	return Coord{Z: int(t.Z), X: int(t.X), Y: int(t.Y)}
}

// FromLatLon returns the tile containing the given WGS84 point at the
// given zoom. Indices are clamped to [0, 2^zoom-1] so points on the
// antimeridian or beyond the Mercator latitude limit still land on a
// valid tile.
func FromLatLon(lat, lon float64, zoom int) Coord {
	if lat > mercatorLatLimit {
		lat = mercatorLatLimit
	}
	if lat < -mercatorLatLimit {
		lat = -mercatorLatLimit
	}

	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(zoom))

	n := 1 << uint(zoom)
	x := int(t.X)
	y := int(t.Y)
	if x > n-1 {
		x = n - 1
	}
	if x < 0 {
		x = 0
	}
	if y > n-1 {
		y = n - 1
	}
	if y < 0 {
		y = 0
	}

	return Coord{Z: zoom, X: x, Y: y}
}
