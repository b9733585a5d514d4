package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tilecov/pkg/config"
	errs "tilecov/pkg/errors"
	"tilecov/pkg/logger"
	"tilecov/pkg/models"
	"tilecov/pkg/tiles"
)

// Derivation backfills run in bounded chunks so a large catalogue never
// loads into memory at once.
const deriveBatchSize = 1000

// Store is the catalogue surface the probe pipeline runs against.
type Store interface {
	// SelectPending returns up to limit distinct occurrence tiles at the
	// zoom that have no definitive coverage verdict yet.
	SelectPending(ctx context.Context, zoom, limit int) ([]tiles.Coord, error)

	// SaveBatch persists one batch of probe outcomes atomically: the
	// whole batch commits or none of it does.
	SaveBatch(ctx context.Context, zoom int, outcomes []models.Outcome) error

	// DeriveTiles assigns tile coordinates at the zoom to every
	// occurrence that has none, returning how many rows were updated.
	DeriveTiles(ctx context.Context, zoom int) (int64, error)

	// Coverage returns the stored verdict for a single tile.
	Coverage(ctx context.Context, coord tiles.Coord) (*models.CoverageRecord, error)

	// Stats summarizes catalogue and coverage progress at the zoom.
	Stats(ctx context.Context, zoom int) (*Stats, error)

	Close() error
}

// Options tune store behavior beyond the connection itself.
type Options struct {
	// KeepCoverageOnError preserves a tile's previously recorded verdict
	// when a probe fails; when false the verdict is cleared so the tile
	// is selected again by later runs.
	KeepCoverageOnError bool
}

// Stats is a point-in-time summary of catalogue and coverage state.
type Stats struct {
	Occurrences        int64
	TiledOccurrences   int64
	FlaggedOccurrences int64
	CheckedTiles       int64
	CoveredTiles       int64
	UncoveredTiles     int64
	ErroredTiles       int64
	PendingTiles       int64
}

// GormStore implements Store over a local sqlite file.
type GormStore struct {
	DB   *gorm.DB
	opts Options
	log  logger.Logger
}

// A tile is pending when no coverage row exists for it or the row carries
// no verdict. Tiles with recent occurrences are probed first; the (x, y)
// tiebreak keeps the order deterministic.
const pendingTilesQuery = `
SELECT o.tile_x AS x, o.tile_y AS y
FROM occurrences o
LEFT JOIN tile_coverages tc
  ON tc.z = o.tile_z AND tc.x = o.tile_x AND tc.y = o.tile_y
WHERE o.tile_z = ?
  AND o.tile_x IS NOT NULL
  AND o.tile_y IS NOT NULL
  AND tc.has_coverage IS NULL
GROUP BY o.tile_x, o.tile_y
ORDER BY MAX(o.event_date) DESC, o.tile_x, o.tile_y
LIMIT ?`

const pendingTilesCountQuery = `
SELECT COUNT(*) FROM (
  SELECT o.tile_x, o.tile_y
  FROM occurrences o
  LEFT JOIN tile_coverages tc
    ON tc.z = o.tile_z AND tc.x = o.tile_x AND tc.y = o.tile_y
  WHERE o.tile_z = ?
    AND o.tile_x IS NOT NULL
    AND o.tile_y IS NOT NULL
    AND tc.has_coverage IS NULL
  GROUP BY o.tile_x, o.tile_y
)`

const propagateCoverageQuery = `
UPDATE occurrences
SET has_coverage = tc.has_coverage
FROM tile_coverages tc
WHERE tc.z = occurrences.tile_z
  AND tc.x = occurrences.tile_x
  AND tc.y = occurrences.tile_y
  AND occurrences.tile_z = ?
  AND tc.run_id = ?`

// Open opens (creating if necessary) the sqlite catalogue at cfg.Path and
// migrates the schema. The parent directory is created when missing.
func Open(cfg config.DatabaseConfig, opts Options, log logger.Logger) (*GormStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypePersist, "failed to create database directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: newGormLogger(log, cfg.LogQueries),
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypePersist, "failed to open database")
	}

	if err := db.AutoMigrate(&models.Occurrence{}, &models.CoverageRecord{}); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypePersist, "failed to migrate schema")
	}

	log.DebugWithFields("database ready", map[string]interface{}{
		"path": cfg.Path,
	})

	return &GormStore{DB: db, opts: opts, log: log}, nil
}

// SelectPending returns up to limit distinct tiles still awaiting a
// verdict, most recently observed first. It queries fresh on every call so
// the result reflects the latest committed batch.
func (s *GormStore) SelectPending(ctx context.Context, zoom, limit int) ([]tiles.Coord, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []struct {
		X int
		Y int
	}
	err := s.DB.WithContext(ctx).Raw(pendingTilesQuery, zoom, limit).Scan(&rows).Error
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypePersist, "failed to select pending tiles")
	}

	coords := make([]tiles.Coord, 0, len(rows))
	for _, row := range rows {
		coords = append(coords, tiles.Coord{Z: zoom, X: row.X, Y: row.Y})
	}
	return coords, nil
}

// SaveBatch writes one batch of outcomes in a single transaction: upsert
// the per-tile verdicts, then propagate them onto the occurrences whose
// derived tile matches. On any error the whole batch rolls back.
func (s *GormStore) SaveBatch(ctx context.Context, zoom int, outcomes []models.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	start := time.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.upsertCoverage(tx, outcomes); err != nil {
			return err
		}
		return tx.Exec(propagateCoverageQuery, zoom, outcomes[0].RunID).Error
	})
	if err != nil {
		return errs.Wrap(err, errs.ErrorTypePersist, "failed to commit outcome batch")
	}

	s.log.DebugWithFields("batch committed", map[string]interface{}{
		"outcomes": len(outcomes),
		"elapsed":  time.Since(start),
	})
	return nil
}

// upsertCoverage inserts or updates one tile_coverages row per outcome,
// keyed on (z, x, y). Failed probes leave a previously recorded verdict in
// place unless the store is configured to clear it.
func (s *GormStore) upsertCoverage(tx *gorm.DB, outcomes []models.Outcome) error {
	now := time.Now()

	var resolved, failed []models.CoverageRecord
	for _, o := range outcomes {
		rec := models.CoverageRecord{
			Z:           o.Coord.Z,
			X:           o.Coord.X,
			Y:           o.Coord.Y,
			HasCoverage: o.HasCoverage(),
			Status:      o.Status,
			ErrorDetail: o.Detail,
			HTTPStatus:  o.HTTPStatus,
			CheckedAt:   now,
			RunID:       o.RunID,
		}
		if o.OK() {
			resolved = append(resolved, rec)
		} else {
			failed = append(failed, rec)
		}
	}

	tileKey := []clause.Column{{Name: "z"}, {Name: "x"}, {Name: "y"}}

	if len(resolved) > 0 {
		err := tx.Clauses(clause.OnConflict{
			Columns: tileKey,
			DoUpdates: clause.AssignmentColumns([]string{
				"has_coverage", "status", "error_detail", "http_status", "checked_at", "run_id",
			}),
		}).Create(&resolved).Error
		if err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		columns := []string{"status", "error_detail", "http_status", "checked_at", "run_id"}
		if !s.opts.KeepCoverageOnError {
			columns = append(columns, "has_coverage")
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   tileKey,
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&failed).Error
		if err != nil {
			return err
		}
	}

	return nil
}

// DeriveTiles assigns tile coordinates at the zoom to every occurrence
// that has none yet, in chunks of deriveBatchSize rows per transaction.
func (s *GormStore) DeriveTiles(ctx context.Context, zoom int) (int64, error) {
	var total int64
	for {
		var batch []models.Occurrence
		err := s.DB.WithContext(ctx).
			Where("tile_z IS NULL OR tile_x IS NULL OR tile_y IS NULL").
			Limit(deriveBatchSize).
			Find(&batch).Error
		if err != nil {
			return total, errs.Wrap(err, errs.ErrorTypePersist, "failed to load occurrences for derivation")
		}
		if len(batch) == 0 {
			return total, nil
		}

		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for i := range batch {
				coord := tiles.FromLatLon(batch[i].Lat, batch[i].Lon, zoom)
				err := tx.Model(&models.Occurrence{}).
					Where("id = ?", batch[i].ID).
					Updates(map[string]interface{}{
						"tile_z": coord.Z,
						"tile_x": coord.X,
						"tile_y": coord.Y,
					}).Error
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, errs.Wrap(err, errs.ErrorTypePersist, "failed to write derived tiles")
		}

		total += int64(len(batch))
		s.log.DebugWithFields("derived tiles", map[string]interface{}{
			"rows":  len(batch),
			"total": total,
			"zoom":  zoom,
		})
	}
}

// Coverage returns the stored verdict for one tile.
func (s *GormStore) Coverage(ctx context.Context, coord tiles.Coord) (*models.CoverageRecord, error) {
	var rec models.CoverageRecord
	err := s.DB.WithContext(ctx).
		Where("z = ? AND x = ? AND y = ?", coord.Z, coord.X, coord.Y).
		First(&rec).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.New(errs.ErrorTypeNotFound, fmt.Sprintf("no coverage record for tile %s", coord))
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypePersist, "failed to load coverage record")
	}
	return &rec, nil
}

// Stats summarizes catalogue and coverage progress at the zoom.
func (s *GormStore) Stats(ctx context.Context, zoom int) (*Stats, error) {
	db := s.DB.WithContext(ctx)
	var st Stats

	counts := []struct {
		name  string
		query *gorm.DB
		dst   *int64
	}{
		{"occurrences", db.Model(&models.Occurrence{}), &st.Occurrences},
		{"tiled occurrences", db.Model(&models.Occurrence{}).Where("tile_z = ?", zoom), &st.TiledOccurrences},
		{"flagged occurrences", db.Model(&models.Occurrence{}).Where("has_coverage IS NOT NULL"), &st.FlaggedOccurrences},
		{"checked tiles", db.Model(&models.CoverageRecord{}).Where("z = ?", zoom), &st.CheckedTiles},
		{"covered tiles", db.Model(&models.CoverageRecord{}).Where("z = ? AND has_coverage = ?", zoom, true), &st.CoveredTiles},
		{"uncovered tiles", db.Model(&models.CoverageRecord{}).Where("z = ? AND has_coverage = ?", zoom, false), &st.UncoveredTiles},
		{"errored tiles", db.Model(&models.CoverageRecord{}).Where("z = ? AND status = ?", zoom, models.StatusError), &st.ErroredTiles},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypePersist, "failed to count "+c.name)
		}
	}

	err := db.Raw(pendingTilesCountQuery, zoom).Scan(&st.PendingTiles).Error
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypePersist, "failed to count pending tiles")
	}

	return &st, nil
}

// Close releases the underlying database connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return errs.Wrap(err, errs.ErrorTypePersist, "failed to access underlying connection")
	}
	return sqlDB.Close()
}
