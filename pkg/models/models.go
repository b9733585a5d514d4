package models

import (
	"time"

	"tilecov/pkg/tiles"
)

// Status values stored on tile_coverages rows.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// CoverageRecord is a tile's most recent coverage verdict. One row per
// tile, upserted on every check.
type CoverageRecord struct {
	ID          uint `gorm:"primaryKey"`
	Z           int  `gorm:"uniqueIndex:idx_tile_coverages_zxy;not null"`
	X           int  `gorm:"uniqueIndex:idx_tile_coverages_zxy;not null"`
	Y           int  `gorm:"uniqueIndex:idx_tile_coverages_zxy;not null"`
	HasCoverage *bool
	Status      string `gorm:"type:varchar(10)"`
	ErrorDetail string `gorm:"type:text"`
	HTTPStatus  int
	CheckedAt   time.Time `gorm:"index"`
	RunID       string    `gorm:"index"`
}

func (CoverageRecord) TableName() string {
	return "tile_coverages"
}

// Coord returns the record's tile coordinate.
func (r *CoverageRecord) Coord() tiles.Coord {
	return tiles.Coord{Z: r.Z, X: r.X, Y: r.Y}
}

// Occurrence is a catalogue row reduced to the columns this pipeline
// touches. TileZ/TileX/TileY and HasCoverage are owned by the pipeline;
// the rest is read-only context loaded by the importer.
type Occurrence struct {
	ID             string `gorm:"primaryKey"`
	ScientificName string `gorm:"index"`
	Country        string
	EventDate      time.Time `gorm:"index:idx_occurrences_event_date"`
	Lat            float64
	Lon            float64
	TileZ          *int `gorm:"index:idx_occurrences_tile"`
	TileX          *int `gorm:"index:idx_occurrences_tile"`
	TileY          *int `gorm:"index:idx_occurrences_tile"`
	HasCoverage    *bool
}

func (Occurrence) TableName() string {
	return "occurrences"
}

// Tile returns the occurrence's derived tile, if one has been derived.
func (o *Occurrence) Tile() (tiles.Coord, bool) {
	if o.TileZ == nil || o.TileX == nil || o.TileY == nil {
		return tiles.Coord{}, false
	}
	return tiles.Coord{Z: *o.TileZ, X: *o.TileX, Y: *o.TileY}, true
}

// Outcome is the terminal result of probing one tile. Every selected
// tile produces exactly one, whatever happened on the wire.
type Outcome struct {
	Coord      tiles.Coord
	Covered    bool
	Features   int
	Status     string
	HTTPStatus int
	Detail     string
	Attempts   int
	Elapsed    time.Duration
	RunID      string
}

// OK reports whether the probe reached a definitive coverage verdict.
func (o Outcome) OK() bool {
	return o.Status == StatusOK
}

// HasCoverage returns the verdict to persist: a pointer for definitive
// outcomes, nil for failed probes.
func (o Outcome) HasCoverage() *bool {
	if !o.OK() {
		return nil
	}
	covered := o.Covered
	return &covered
}
