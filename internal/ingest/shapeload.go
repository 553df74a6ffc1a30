package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/lulc/internal/db"
)

// loadShapefileNative parses a shapefile with go-shp and COPYs it into a new
// table, for installs without GDAL. Attributes land as TEXT columns; the
// geometry is EWKB-encoded into a geometry column, matching what ogr2ogr
// would have produced (geom column, id primary key, MultiPolygon promotion).
func (l *ToolLoader) loadShapefileNative(ctx context.Context, shpPath, table string) error {
	if l.pool == nil {
		return eris.New("ingest: native shapefile load requires a pool")
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return eris.Wrapf(err, "ingest: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	columns := make([]string, 0, len(fields)+1)
	seen := map[string]bool{}
	for _, f := range fields {
		raw := strings.TrimRight(f.String(), "\x00")
		col, err := TableName(raw)
		if err != nil {
			col = "field"
		}
		for seen[col] {
			col += "_"
		}
		seen[col] = true
		columns = append(columns, col)
	}

	if err := l.createShapeTable(ctx, table, columns); err != nil {
		return err
	}

	copyCols := append(append([]string{}, columns...), "geom")
	batchSize := l.cfg.CopyBatchSize
	if batchSize <= 0 {
		batchSize = 50000
	}

	log := l.log.With(zap.String("file", shpPath), zap.String("table", table))

	var batch [][]any
	var total int64
	var skipped int
	flush := func() error {
		n, err := db.CopyFromSchema(ctx, l.pool, l.schema, table, copyCols, batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for reader.Next() {
		_, shape := reader.Shape()

		wkb, encErr := encodeEWKB(shape, l.cfg.SRID)
		if encErr != nil || wkb == nil {
			skipped++
			continue
		}

		row := make([]any, 0, len(copyCols))
		for i := range columns {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val == "" {
				row = append(row, nil)
			} else {
				row = append(row, val)
			}
		}
		row = append(row, wkb)
		batch = append(batch, row)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := reader.Err(); err != nil {
		return eris.Wrapf(err, "ingest: read shapefile %s", shpPath)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	log.Info("shapefile loaded natively",
		zap.Int64("rows", total),
		zap.Int("skipped", skipped),
	)
	return nil
}

// createShapeTable creates the target table with TEXT attribute columns and
// a geometry column, plus a spatial index.
func (l *ToolLoader) createShapeTable(ctx context.Context, table string, columns []string) error {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(l.schema)
	sb.WriteString(".")
	sb.WriteString(table)
	sb.WriteString(" (id SERIAL PRIMARY KEY")
	for _, col := range columns {
		sb.WriteString(", ")
		sb.WriteString(col)
		sb.WriteString(" TEXT")
	}
	sb.WriteString(", geom geometry(Geometry, ")
	sb.WriteString(strconv.Itoa(l.cfg.SRID))
	sb.WriteString("))")

	if _, err := l.pool.Exec(ctx, sb.String()); err != nil {
		return eris.Wrapf(err, "ingest: create table %s", table)
	}

	idx := "CREATE INDEX " + table + "_geom_idx ON " + l.schema + "." + table + " USING GIST (geom)"
	if _, err := l.pool.Exec(ctx, idx); err != nil {
		return eris.Wrapf(err, "ingest: create spatial index on %s", table)
	}
	return nil
}
