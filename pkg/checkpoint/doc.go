// Package checkpoint persists probe run progress across interruptions.
//
// A run state file is written after every committed batch, so a run
// stopped by a signal, a crash, or a persist failure leaves an accurate
// record of how far it got. It tracks:
//   - Run identity (run ID, zoom, start time)
//   - Per-run counters (selected, processed, covered, uncovered, failed)
//   - Committed batch count and completion flag
//
// Run states are stored in platform-specific data directories:
//   - Linux: ~/.local/share/tilecov/checkpoints/
//   - macOS: ~/Library/Application Support/tilecov/checkpoints/
//   - Windows: %APPDATA%/tilecov/checkpoints/
//
// Files are saved atomically (temp file, fsync, rename) to prevent
// corruption and include versioning for future compatibility. Resuming
// does not replay from the file: unfinished tiles are simply re-selected
// from the database, so the checkpoint is purely informational.
package checkpoint
