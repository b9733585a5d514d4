// Package tiles provides XYZ tile coordinate math and vector tile
// coverage decoding.
//
// Coord identifies a slippy-map tile and FromLatLon derives the tile
// containing a WGS84 point:
//
//	coord := tiles.FromLatLon(60.1699, 24.9384, 14)
//	fmt.Println(coord) // "14/9326/4742"
//
// Decoder answers the only question the prober asks of a tile body:
// how many features does the coverage layer hold?
//
//	decoder := tiles.NewDecoder("image")
//	covered, err := decoder.Covered(body)
//	if err != nil {
//		// malformed tile, do not retry
//	}
//
// Empty bodies and tiles without the layer decode to zero features and
// are not errors; only malformed bodies are.
package tiles
