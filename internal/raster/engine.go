// Package raster computes classification analytics over stored rasters.
//
// Two area paths exist and are never conflated: the exact path reprojects
// the raster to a metric reference frame and multiplies real pixel
// dimensions, while the estimated path multiplies degree-based pixel scale
// by a fixed conversion constant and is always labeled as an estimate.
package raster

import (
	"math"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/config"
	"github.com/terrascope/lulc/internal/db"
)

// ErrMetadataUnavailable means a resolved table returned no metadata row.
// This is a store-consistency fault, surfaced rather than retried.
var ErrMetadataUnavailable = eris.New("raster: metadata unavailable")

// Engine runs analytics queries against resolved raster tables.
type Engine struct {
	pool db.Pool
	cat  *catalog.Catalog
	cfg  config.AnalysisConfig
	log  *zap.Logger
}

// NewEngine creates an analytics engine.
func NewEngine(pool db.Pool, cat *catalog.Catalog, cfg config.AnalysisConfig) *Engine {
	return &Engine{
		pool: pool,
		cat:  cat,
		cfg:  cfg,
		log:  zap.L().With(zap.String("component", "raster.engine")),
	}
}

// identPattern matches table names produced by ingest.TableName. Resolved
// names are interpolated into raster SQL (PostGIS raster functions cannot
// take the table as a bind parameter), so anything else is rejected.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(table string) error {
	if !identPattern.MatchString(table) {
		return eris.Errorf("raster: invalid table name %q", table)
	}
	return nil
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
