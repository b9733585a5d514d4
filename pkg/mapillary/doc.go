// Package mapillary provides a client for the Mapillary vector tile API.
//
// This package includes:
//   - A configurable HTTP client with per-request timeouts and a
//     transport sized for many concurrent fetches against one host
//   - Helper functions for constructing and redacting tile URLs
//   - Status mapping onto the shared error taxonomy so callers can
//     decide what to retry
//
// Example usage:
//
//	client := mapillary.NewClient(cfg.Mapillary, log)
//
//	// Fetch a tile body
//	body, err := client.FetchTile(ctx, tiles.Coord{Z: 14, X: 9326, Y: 4742})
//	if err != nil {
//	    if errors.IsRetryable(err) {
//	        // back off and try again
//	    }
//	    // record the failure
//	}
//
//	// An empty body is a valid answer: the tile has no coverage.
//	covered, err := decoder.Covered(body)
package mapillary
