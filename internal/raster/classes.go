package raster

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/terrascope/lulc/internal/legend"
)

// ClassCount is one class-code histogram entry. Null pixels are excluded.
type ClassCount struct {
	Code       int     `json:"code"`
	Label      string  `json:"label"`
	PixelCount int64   `json:"pixel_count"`
	Percentage float64 `json:"percentage"`
}

// ClassCountsResult packages the histogram for a resolved dataset.
type ClassCountsResult struct {
	Year        string       `json:"year"`
	Table       string       `json:"table_name"`
	TotalPixels int64        `json:"total_pixels"`
	Metadata    *Metadata    `json:"raster_metadata"`
	Classes     []ClassCount `json:"class_counts"`
}

// classCounts sums ST_ValueCount per class over all tiles. rastExpr selects
// between the native raster and a reprojected one.
func (e *Engine) classCounts(ctx context.Context, table, rastExpr string, totalPixels int64) ([]ClassCount, error) {
	sql := `
		WITH value_counts AS (
			SELECT (ST_ValueCount(` + rastExpr + `)).*
			FROM ` + table + `
		)
		SELECT value AS class_code, SUM(count) AS pixel_count
		FROM value_counts
		WHERE value IS NOT NULL
		GROUP BY value
		ORDER BY value
	`
	rows, err := e.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: class counts for %s", table)
	}
	defer rows.Close()

	var counts []ClassCount
	for rows.Next() {
		var (
			code   float64
			pixels int64
		)
		if err := rows.Scan(&code, &pixels); err != nil {
			return nil, eris.Wrap(err, "raster: scan class count")
		}
		c := ClassCount{
			Code:       int(code),
			Label:      legend.Label(int(code)),
			PixelCount: pixels,
		}
		if totalPixels > 0 {
			c.Percentage = round2(float64(pixels) / float64(totalPixels) * 100)
		}
		counts = append(counts, c)
	}
	// A mid-stream failure invalidates the whole histogram; partial class
	// lists are never returned.
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "raster: class counts for %s", table)
	}
	return counts, nil
}

// ClassCounts resolves the key and computes the per-class pixel histogram
// with percentages of the full grid.
func (e *Engine) ClassCounts(ctx context.Context, key string) (*ClassCountsResult, error) {
	table, err := e.cat.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	md, err := e.Metadata(ctx, table)
	if err != nil {
		return nil, err
	}

	total := md.TotalPixels()
	classes, err := e.classCounts(ctx, table, "rast", total)
	if err != nil {
		return nil, err
	}

	return &ClassCountsResult{
		Year:        key,
		Table:       table,
		TotalPixels: total,
		Metadata:    md,
		Classes:     classes,
	}, nil
}
