// Package ingest loads raster and shapefile datasets into PostGIS at most
// once per distinct content, tracked by checksum ledgers.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/checksum"
)

// Outcome classifies what happened to one candidate source.
type Outcome string

const (
	// Imported: a genuinely new dataset was loaded and recorded.
	Imported Outcome = "imported"
	// SkipDuplicate: the exact (filename, checksum) pair is already in the
	// ledger. Normal idempotent outcome.
	SkipDuplicate Outcome = "skip_duplicate"
	// SkipCollision: the derived table name already exists in the catalog
	// but the content is not a known duplicate. The existing table is left
	// untouched and the new data is NOT loaded; this is surfaced loudly
	// because it can hide changed content behind a reused file name.
	SkipCollision Outcome = "skip_collision"
	// Failed: the external load failed; no ledger entry was written, so the
	// source stays eligible for retry.
	Failed Outcome = "failed"
)

// Result reports the outcome for one source file.
type Result struct {
	Source   string  `json:"source"`
	Table    string  `json:"table"`
	Checksum string  `json:"checksum"`
	Outcome  Outcome `json:"outcome"`
	Err      error   `json:"-"`
}

// Importer drives sources through checksum, ledger, catalog probe, load,
// and record. It never mutates or deletes existing tables or ledger rows.
type Importer struct {
	catalog     *catalog.Catalog
	rasterLog   *Ledger
	shapeLog    *Ledger
	loader      Loader
	loadLimiter *rate.Limiter
	log         *zap.Logger
}

// NewImporter wires an Importer. loadsPerMin throttles external tool spawns;
// zero or negative disables throttling.
func NewImporter(cat *catalog.Catalog, rasterLedger, shapeLedger *Ledger, loader Loader, loadsPerMin int) *Importer {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if loadsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(loadsPerMin)/60.0), 1)
	}
	return &Importer{
		catalog:     cat,
		rasterLog:   rasterLedger,
		shapeLog:    shapeLedger,
		loader:      loader,
		loadLimiter: limiter,
		log:         zap.L().With(zap.String("component", "ingest.importer")),
	}
}

// ImportRaster runs one raster file through the pipeline.
func (im *Importer) ImportRaster(ctx context.Context, path string) (Result, error) {
	filename := filepath.Base(path)
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	table, err := TableName(stem)
	if err != nil {
		return Result{Source: filename, Outcome: Failed, Err: err}, err
	}

	sum, err := checksum.SumFile(path)
	if err != nil {
		return Result{Source: filename, Table: table, Outcome: Failed, Err: err}, err
	}

	return im.run(ctx, im.rasterLog, filename, table, sum, func(ctx context.Context) error {
		return im.loader.LoadRaster(ctx, path, table)
	})
}

// ImportShapefileSet runs one shapefile set through the pipeline. The
// checksum covers every member of the set so a change to any sibling file
// counts as new content.
func (im *Importer) ImportShapefileSet(ctx context.Context, set ShapefileSet) (Result, error) {
	filename := set.Name()

	table, err := TableName(set.Stem())
	if err != nil {
		return Result{Source: filename, Outcome: Failed, Err: err}, err
	}

	files := set.Files(func(p string) bool {
		_, statErr := os.Stat(p)
		return statErr == nil
	})
	sum, err := checksum.Sum(files...)
	if err != nil {
		return Result{Source: filename, Table: table, Outcome: Failed, Err: err}, err
	}

	if _, err := DescribeShapefile(set.Shp()); err != nil {
		return Result{Source: filename, Table: table, Checksum: sum, Outcome: Failed, Err: err}, err
	}

	return im.run(ctx, im.shapeLog, filename, table, sum, func(ctx context.Context) error {
		return im.loader.LoadShapefile(ctx, set.Shp(), table)
	})
}

// run is the shared orchestration contract: ledger lookup, catalog probe,
// throttled load, ledger record. A load failure leaves no ledger entry.
func (im *Importer) run(ctx context.Context, ledger *Ledger, filename, table, sum string, load func(context.Context) error) (Result, error) {
	res := Result{Source: filename, Table: table, Checksum: sum}

	imported, err := ledger.HasImported(ctx, filename, sum)
	if err != nil {
		res.Outcome, res.Err = Failed, err
		return res, err
	}
	if imported {
		res.Outcome = SkipDuplicate
		im.log.Info("skip: already imported",
			zap.String("source", filename),
			zap.String("checksum", sum),
		)
		return res, nil
	}

	exists, err := im.catalog.TableExists(ctx, table)
	if err != nil {
		res.Outcome, res.Err = Failed, err
		return res, err
	}
	if exists {
		// Same derived name, different (or unknown) content. The table is
		// left as-is; the operator has to rename the source to load it.
		res.Outcome = SkipCollision
		im.log.Warn("skip: table name collision, new content NOT loaded",
			zap.String("source", filename),
			zap.String("table", table),
			zap.String("checksum", sum),
		)
		return res, nil
	}

	if err := im.loadLimiter.Wait(ctx); err != nil {
		res.Outcome, res.Err = Failed, err
		return res, eris.Wrap(err, "ingest: wait for load slot")
	}

	if err := load(ctx); err != nil {
		res.Outcome, res.Err = Failed, err
		return res, err
	}

	if err := ledger.Record(ctx, filename, sum, table); err != nil {
		res.Outcome, res.Err = Failed, err
		return res, err
	}

	res.Outcome = Imported
	im.log.Info("imported",
		zap.String("source", filename),
		zap.String("table", table),
		zap.String("checksum", sum),
	)
	return res, nil
}
