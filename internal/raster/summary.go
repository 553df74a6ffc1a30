package raster

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// metersPerDegree approximates one degree of longitude at the equator. The
// estimated-area path multiplies degree-based pixel scale by this constant;
// figures derived from it are always labeled estimates.
const metersPerDegree = 111320.0

// ClassEstimate is one histogram entry with estimated area attached.
type ClassEstimate struct {
	Code            int     `json:"code"`
	Label           string  `json:"label"`
	PixelCount      int64   `json:"pixel_count"`
	Percentage      float64 `json:"percentage"`
	EstimatedAreaM2 float64 `json:"estimated_area_m2"`
	EstimatedKm2    float64 `json:"estimated_area_km2"`
}

// Summary is the single-dataset overview: metadata, bands, extent, and a
// class histogram with constant-based area estimates. For exact areas use
// Analyze.
type Summary struct {
	Year             string          `json:"year"`
	Table            string          `json:"table_name"`
	Metadata         *Metadata       `json:"raster_metadata"`
	Bands            []BandInfo      `json:"bands"`
	TileCount        int64           `json:"tile_count"`
	Envelope         json.RawMessage `json:"envelope"`
	TotalPixels      int64           `json:"total_pixels"`
	PixelAreaM2      float64         `json:"pixel_area_m2_estimated"`
	EstimatedAreaKm2 float64         `json:"estimated_total_area_km2"`
	Classes          []ClassEstimate `json:"classes"`
}

// Summarize resolves the key and builds the estimated-area overview.
func (e *Engine) Summarize(ctx context.Context, key string) (*Summary, error) {
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

	bands, err := e.Bands(ctx, table, md.NumBands)
	if err != nil {
		return nil, err
	}

	tiles, err := e.TileCount(ctx, table)
	if err != nil {
		return nil, err
	}

	env, err := e.EnvelopeGeoJSON(ctx, table)
	if err != nil {
		return nil, err
	}

	total := md.TotalPixels()
	counts, err := e.classCounts(ctx, table, "rast", total)
	if err != nil {
		return nil, err
	}

	pixelAreaM2 := EstimatedPixelAreaM2(md.ScaleX, md.ScaleY)
	s := &Summary{
		Year:        key,
		Table:       table,
		Metadata:    md,
		Bands:       bands,
		TileCount:   tiles,
		Envelope:    json.RawMessage(env),
		TotalPixels: total,
		PixelAreaM2: pixelAreaM2,
	}
	for _, c := range counts {
		areaM2 := float64(c.PixelCount) * pixelAreaM2
		s.Classes = append(s.Classes, ClassEstimate{
			Code:            c.Code,
			Label:           c.Label,
			PixelCount:      c.PixelCount,
			Percentage:      c.Percentage,
			EstimatedAreaM2: areaM2,
			EstimatedKm2:    areaM2 / 1e6,
		})
		s.EstimatedAreaKm2 += areaM2 / 1e6
	}
	return s, nil
}

// EstimatedPixelAreaM2 converts degree-based pixel scale to an approximate
// area in square meters. Estimate only; exact areas go through Analyze.
func EstimatedPixelAreaM2(scaleX, scaleY float64) float64 {
	return math.Abs(scaleX*scaleY) * metersPerDegree * metersPerDegree
}

// DatasetOverview is one dataset's entry in the cross-dataset summary.
type DatasetOverview struct {
	Year      string `json:"year"`
	Table     string `json:"table_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	NumBands  int    `json:"num_bands"`
	SRID      int    `json:"srid"`
	TileCount int64  `json:"tile_count"`
}

// DatasetSummary covers every cataloged dataset year: per-year metadata
// plus consistency checks across the collection.
type DatasetSummary struct {
	Years          []string          `json:"years"`
	Datasets       []DatasetOverview `json:"datasets"`
	TotalTiles     int64             `json:"total_tiles"`
	ConsistentSRID bool              `json:"consistent_srid"`
	ConsistentBand bool              `json:"consistent_bands"`
}

// SummarizeAll scans every year the catalog knows about, fetching metadata
// concurrently. One failing dataset fails the whole summary.
func (e *Engine) SummarizeAll(ctx context.Context) (*DatasetSummary, error) {
	years, err := e.cat.Years(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		overview = make([]DatasetOverview, 0, len(years))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, yr := range years {
		g.Go(func() error {
			table, err := e.cat.Resolve(gctx, yr)
			if err != nil {
				return err
			}
			md, err := e.Metadata(gctx, table)
			if err != nil {
				return err
			}
			tiles, err := e.TileCount(gctx, table)
			if err != nil {
				return err
			}
			mu.Lock()
			overview = append(overview, DatasetOverview{
				Year:      yr,
				Table:     table,
				Width:     md.Width,
				Height:    md.Height,
				NumBands:  md.NumBands,
				SRID:      md.SRID,
				TileCount: tiles,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(overview, func(i, j int) bool { return overview[i].Year < overview[j].Year })

	s := &DatasetSummary{
		Years:          years,
		Datasets:       overview,
		ConsistentSRID: true,
		ConsistentBand: true,
	}
	for i, d := range overview {
		s.TotalTiles += d.TileCount
		if i > 0 {
			if d.SRID != overview[0].SRID {
				s.ConsistentSRID = false
			}
			if d.NumBands != overview[0].NumBands {
				s.ConsistentBand = false
			}
		}
	}
	return s, nil
}
