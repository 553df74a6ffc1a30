package raster

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Metadata holds the raw raster metadata from ST_MetaData.
type Metadata struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	NumBands   int     `json:"num_bands"`
	SRID       int     `json:"srid"`
	UpperLeftX float64 `json:"upper_left_x"`
	UpperLeftY float64 `json:"upper_left_y"`
	ScaleX     float64 `json:"scale_x"`
	ScaleY     float64 `json:"scale_y"`
	SkewX      float64 `json:"skew_x"`
	SkewY      float64 `json:"skew_y"`
}

// TotalPixels is the full pixel count of the raster grid, including no-data
// pixels.
func (m *Metadata) TotalPixels() int64 {
	return int64(m.Width) * int64(m.Height)
}

// Metadata retrieves raster metadata for a resolved table. A table with no
// rows is a store-consistency fault (ErrMetadataUnavailable).
func (e *Engine) Metadata(ctx context.Context, table string) (*Metadata, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	sql := `
		SELECT (md).width, (md).height, (md).numbands, (md).srid,
		       (md).upperleftx, (md).upperlefty,
		       (md).scalex, (md).scaley, (md).skewx, (md).skewy
		FROM (
			SELECT ST_MetaData(rast) AS md
			FROM ` + table + `
			LIMIT 1
		) meta
	`
	var m Metadata
	err := e.pool.QueryRow(ctx, sql).Scan(
		&m.Width, &m.Height, &m.NumBands, &m.SRID,
		&m.UpperLeftX, &m.UpperLeftY,
		&m.ScaleX, &m.ScaleY, &m.SkewX, &m.SkewY,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrMetadataUnavailable, "table %s", table)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "raster: metadata for %s", table)
	}
	return &m, nil
}

// TileCount returns the number of raster tiles stored for the table.
func (e *Engine) TileCount(ctx context.Context, table string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}

	var n int64
	if err := e.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "raster: tile count for %s", table)
	}
	return n, nil
}

// EnvelopeWKT returns the raster extent as WKT.
func (e *Engine) EnvelopeWKT(ctx context.Context, table string) (string, error) {
	return e.envelope(ctx, table, "ST_AsText")
}

// EnvelopeGeoJSON returns the raster extent as a GeoJSON geometry string.
func (e *Engine) EnvelopeGeoJSON(ctx context.Context, table string) (string, error) {
	return e.envelope(ctx, table, "ST_AsGeoJSON")
}

func (e *Engine) envelope(ctx context.Context, table, serialize string) (string, error) {
	if err := checkIdent(table); err != nil {
		return "", err
	}

	sql := `SELECT ` + serialize + `(ST_Envelope(rast)) FROM ` + table + ` LIMIT 1`
	var out string
	err := e.pool.QueryRow(ctx, sql).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", eris.Wrapf(ErrMetadataUnavailable, "table %s", table)
	}
	if err != nil {
		return "", eris.Wrapf(err, "raster: envelope for %s", table)
	}
	return out, nil
}
