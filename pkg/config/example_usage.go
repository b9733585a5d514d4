package config

// Example usage of the configuration system:
//
// 1. Load configuration with all sources:
//
//     config, err := config.Load("", nil)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 2. Load with custom config file:
//
//     config, err := config.Load("/path/to/config.yaml", nil)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 3. Load with command line flags:
//
//     flags := map[string]interface{}{
//         "access-token": "MLY|1234|abcd",
//         "zoom": 14,
//         "tiles": 100,
//         "concurrency": 200,
//         "log-level": "debug",
//     }
//     config, err := config.Load("", flags)
//     if err != nil {
//         log.Fatal(err)
//     }
//
// 4. Programmatic configuration:
//
//     config := config.DefaultConfig()
//     config.Mapillary.AccessToken = "MLY|1234|abcd"
//     config.Database.Path = "data/plants.db"
//     config.Probe.Tiles = 500
//
//     if err := config.Validate(); err != nil {
//         log.Fatal(err)
//     }
//
// 5. Save configuration to file:
//
//     if err := config.Save(".tilecov.yaml"); err != nil {
//         log.Fatal(err)
//     }
//
// 6. Environment variables:
//
//     export MAPILLARY_ACCESS_TOKEN="MLY|1234|abcd"
//     export TILECOV_DB_PATH="data/plants.db"
//     export TILECOV_TILES="100"
//     export TILECOV_BATCH_SIZE="2000"
//     export TILECOV_CONCURRENCY="200"
//     export TILECOV_LOG_LEVEL="debug"
//
// 7. Using configuration in your application:
//
//     // Create tile service client with config
//     client := mapillary.NewClient(
//         config.Mapillary,
//         logger.GetLogger(),
//     )
//
//     // Set up the shared request pacer
//     pacer := ratelimit.NewPacerFromLimit(
//         config.RateLimit.MaxRequestsPerMinute,
//         config.RateLimit.SafetyFactor,
//         config.RateLimit.RequestsPerSecond,
//     )
//
//     // Open the catalogue database
//     store, err := store.Open(config.Database, store.Options{
//         KeepCoverageOnError: config.Probe.KeepCoverageOnError,
//     }, logger.GetLogger())
