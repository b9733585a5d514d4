package mapillary

// Example of wiring the client into the probe pipeline:
//
//   import "tilecov/pkg/logger"
//   log := logger.GetLogger()
//   client := mapillary.NewClient(cfg.Mapillary, log)
//
//   body, err := client.FetchTile(ctx, coord)
//   if err != nil {
//       // map onto an outcome via the shared error taxonomy
//   }
//
// Or just building URLs:
//
//   url := mapillary.BuildTileURL(mapillary.DefaultBaseURL,
//       mapillary.DefaultTileset, coord, token)
//   log.Debug(mapillary.RedactToken(url))
//
// The main benefits of using the client:
// 1. Centralized header management
// 2. Typed errors the retry policy understands
// 3. Per-request timeouts that cannot stall a worker
// 4. Token redaction in every log line
