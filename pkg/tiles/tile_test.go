package tiles

import (
	"testing"

	"github.com/paulmach/orb/maptile"
)

func TestCoordString(t *testing.T) {
	coord := Coord{Z: 14, X: 8702, Y: 5673}
	if got := coord.String(); got != "14/8702/5673" {
		t.Errorf("String() = %q, want %q", got, "14/8702/5673")
	}
}

func TestFromLatLon(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		want     Coord
	}{
		{
			name: "null island",
			lat:  0, lon: 0, zoom: 14,
			want: Coord{Z: 14, X: 8192, Y: 8192},
		},
		{
			name: "london",
			lat:  51.5074, lon: -0.1278, zoom: 14,
			want: Coord{Z: 14, X: 8186, Y: 5448},
		},
		{
			name: "helsinki",
			lat:  60.1699, lon: 24.9384, zoom: 14,
			want: Coord{Z: 14, X: 9326, Y: 4742},
		},
		{
			name: "sydney",
			lat:  -33.8688, lon: 151.2093, zoom: 14,
			want: Coord{Z: 14, X: 15073, Y: 9831},
		},
		{
			name: "north of mercator limit clamps to first row",
			lat:  89.9, lon: 0, zoom: 14,
			want: Coord{Z: 14, X: 8192, Y: 0},
		},
		{
			name: "south of mercator limit clamps to last row",
			lat:  -89.9, lon: 0, zoom: 14,
			want: Coord{Z: 14, X: 8192, Y: 16383},
		},
		{
			name: "antimeridian clamps to last column",
			lat:  0, lon: 180, zoom: 14,
			want: Coord{Z: 14, X: 16383, Y: 8192},
		},
		{
			name: "zoom zero is a single tile",
			lat:  51.5, lon: -0.12, zoom: 0,
			want: Coord{Z: 0, X: 0, Y: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromLatLon(tt.lat, tt.lon, tt.zoom)
			if got != tt.want {
				t.Errorf("FromLatLon(%v, %v, %d) = %v, want %v", tt.lat, tt.lon, tt.zoom, got, tt.want)
			}
		})
	}
}

func TestMaptileRoundTrip(t *testing.T) {
	coord := Coord{Z: 14, X: 9326, Y: 4742}

	mt := coord.ToMaptile()
	if mt != maptile.New(9326, 4742, 14) {
		t.Errorf("ToMaptile() = %v", mt)
	}

	if got := FromMaptile(mt); got != coord {
		t.Errorf("FromMaptile(ToMaptile()) = %v, want %v", got, coord)
	}
}
