package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Report summarizes one ingestion run. Individual load failures are recorded
// per result and do not abort the run; store-level failures do.
type Report struct {
	RunID      string   `json:"run_id"`
	Scanned    int      `json:"scanned"`
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Collisions int      `json:"collisions"`
	Failures   int      `json:"failures"`
	Results    []Result `json:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case Imported:
		r.Imported++
	case SkipDuplicate:
		r.Duplicates++
	case SkipCollision:
		r.Collisions++
	case Failed:
		r.Failures++
	}
}

// RunRasters ingests every .tif in dir, sorted by name.
func (im *Importer) RunRasters(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read raster dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(e.Name())); ext == ".tif" || ext == ".tiff" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	report := &Report{RunID: uuid.NewString(), Scanned: len(paths)}
	log := im.log.With(zap.String("run_id", report.RunID), zap.String("dir", dir))
	log.Info("raster ingestion run starting", zap.Int("files", len(paths)))

	for _, path := range paths {
		if ctx.Err() != nil {
			return report, eris.Wrap(ctx.Err(), "ingest: run cancelled")
		}
		res, err := im.ImportRaster(ctx, path)
		report.add(res)
		if err != nil {
			log.Error("raster import failed",
				zap.String("file", filepath.Base(path)),
				zap.Error(err),
			)
		}
	}

	log.Info("raster ingestion run complete",
		zap.Int("imported", report.Imported),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("collisions", report.Collisions),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}

// RunShapefiles ingests every complete shapefile set under dir, recursively.
func (im *Importer) RunShapefiles(ctx context.Context, dir string) (*Report, error) {
	sets, err := FindShapefileSets(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString(), Scanned: len(sets)}
	log := im.log.With(zap.String("run_id", report.RunID), zap.String("dir", dir))
	log.Info("shapefile ingestion run starting", zap.Int("sets", len(sets)))

	for _, set := range sets {
		if ctx.Err() != nil {
			return report, eris.Wrap(ctx.Err(), "ingest: run cancelled")
		}
		res, err := im.ImportShapefileSet(ctx, set)
		report.add(res)
		if err != nil {
			log.Error("shapefile import failed",
				zap.String("set", set.Name()),
				zap.Error(err),
			)
		}
	}

	log.Info("shapefile ingestion run complete",
		zap.Int("imported", report.Imported),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("collisions", report.Collisions),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}
