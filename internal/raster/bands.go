package raster

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// BandStats carries the ST_SummaryStats composite for one band, attached
// verbatim.
type BandStats struct {
	Count  int64   `json:"count"`
	Sum    float64 `json:"sum"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// BandInfo describes one raster band.
type BandInfo struct {
	Band      int      `json:"band_number"`
	PixelType string   `json:"pixel_type"`
	NoData    *float64 `json:"nodata_value"`
	Stats     BandStats `json:"stats"`
}

// BandInfo fetches pixel type, no-data value, and summary statistics for a
// single band.
func (e *Engine) BandInfo(ctx context.Context, table string, band int) (*BandInfo, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	sql := `
		SELECT ST_BandPixelType(rast, $1),
		       ST_BandNoDataValue(rast, $1),
		       ST_SummaryStats(rast, $1)::text
		FROM ` + table + `
		LIMIT 1
	`
	var (
		pixelType string
		noData    *float64
		statsText string
	)
	err := e.pool.QueryRow(ctx, sql, band).Scan(&pixelType, &noData, &statsText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrMetadataUnavailable, "table %s band %d", table, band)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "raster: band info for %s band %d", table, band)
	}

	stats, err := parseSummaryStats(statsText)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: band stats for %s band %d", table, band)
	}

	return &BandInfo{
		Band:      band,
		PixelType: pixelType,
		NoData:    noData,
		Stats:     stats,
	}, nil
}

// Bands fetches BandInfo for every band of the raster.
func (e *Engine) Bands(ctx context.Context, table string, numBands int) ([]BandInfo, error) {
	bands := make([]BandInfo, 0, numBands)
	for b := 1; b <= numBands; b++ {
		info, err := e.BandInfo(ctx, table, b)
		if err != nil {
			return nil, err
		}
		bands = append(bands, *info)
	}
	return bands, nil
}

// parseSummaryStats parses the ST_SummaryStats composite literal
// "(count,sum,mean,stddev,min,max)".
func parseSummaryStats(s string) (BandStats, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "("), ")")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 6 {
		return BandStats{}, eris.Errorf("malformed summary stats %q", s)
	}

	vals := make([]float64, 6)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BandStats{}, eris.Wrapf(err, "malformed summary stats %q", s)
		}
		vals[i] = v
	}

	return BandStats{
		Count:  int64(vals[0]),
		Sum:    vals[1],
		Mean:   vals[2],
		StdDev: vals[3],
		Min:    vals[4],
		Max:    vals[5],
	}, nil
}
