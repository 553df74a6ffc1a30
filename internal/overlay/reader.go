package overlay

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/terrascope/lulc/internal/geojson"
	"github.com/terrascope/lulc/internal/legend"
)

// Classes returns the class polygons for one year, simplified at the given
// tolerance (<= 0 falls back to the configured default). The cache table is
// materialized first if missing.
func (c *Cache) Classes(ctx context.Context, key string, tolerance float64) ([]geojson.ClassShape, error) {
	if tolerance <= 0 {
		tolerance = c.cfg.DefaultTolerance
	}

	table, _, err := c.Ensure(ctx, key)
	if err != nil {
		return nil, err
	}

	sql := `
		SELECT class_code,
		       ST_AsGeoJSON(ST_SimplifyPreserveTopology(geom, $1))
		FROM ` + table + `
		ORDER BY class_code
	`
	rows, err := c.pool.Query(ctx, sql, tolerance)
	if err != nil {
		return nil, eris.Wrapf(err, "overlay: read %s", table)
	}
	defer rows.Close()

	var shapes []geojson.ClassShape
	for rows.Next() {
		var (
			code int
			geo  []byte
		)
		if err := rows.Scan(&code, &geo); err != nil {
			return nil, eris.Wrap(err, "overlay: scan class polygon")
		}
		shapes = append(shapes, geojson.ClassShape{
			Code:     code,
			Label:    legend.Label(code),
			Geometry: geo,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "overlay: read %s", table)
	}
	return shapes, nil
}

// AllYears reads the consolidated all-years table, tagging each shape with
// its year. The table is loaded out of band; a missing table surfaces as a
// query error, never triggers materialization.
func (c *Cache) AllYears(ctx context.Context, tolerance float64) ([]geojson.ClassShape, error) {
	if tolerance <= 0 {
		tolerance = c.cfg.DefaultTolerance
	}

	sql := `
		SELECT year, class_code,
		       ST_AsGeoJSON(ST_SimplifyPreserveTopology(geom, $1))
		FROM ` + c.cfg.AllYearsTable + `
		ORDER BY year, class_code
	`
	rows, err := c.pool.Query(ctx, sql, tolerance)
	if err != nil {
		return nil, eris.Wrapf(err, "overlay: read %s", c.cfg.AllYearsTable)
	}
	defer rows.Close()

	var shapes []geojson.ClassShape
	for rows.Next() {
		var (
			year string
			code int
			geo  []byte
		)
		if err := rows.Scan(&year, &code, &geo); err != nil {
			return nil, eris.Wrap(err, "overlay: scan all-years polygon")
		}
		shapes = append(shapes, geojson.ClassShape{
			Year:     year,
			Code:     code,
			Label:    legend.Label(code),
			Geometry: geo,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "overlay: read %s", c.cfg.AllYearsTable)
	}
	return shapes, nil
}
