// Package store persists the occurrence catalogue and tile coverage
// verdicts in a local sqlite file.
//
// The store package handles:
//   - Opening the database and migrating the schema
//   - Selecting distinct occurrence tiles that still need probing
//   - Committing probe outcome batches atomically
//   - Backfilling tile coordinates for occurrences
//   - Progress statistics for the status command
//
// The GormStore type is the primary implementation. Batches commit in a
// single transaction: a (z, x, y) keyed upsert into tile_coverages
// followed by a join update that copies each tile's verdict onto the
// occurrences it contains. Re-running a batch is safe because the upsert
// is idempotent.
//
// Usage:
//
//	st, err := store.Open(cfg.Database, store.Options{
//	    KeepCoverageOnError: cfg.Probe.KeepCoverageOnError,
//	}, log)
//	if err != nil {
//	    log.Fatal(err.Error())
//	}
//	defer st.Close()
//
//	pending, err := st.SelectPending(ctx, 14, 2000)
//	if err != nil {
//	    log.Fatal(err.Error())
//	}
package store
