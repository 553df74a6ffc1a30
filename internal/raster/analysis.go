package raster

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/legend"
)

// AnalysisRequest asks for the exact-area breakdown of one year, optionally
// compared against a reference year. Empty code sets fall back to the
// configured defaults.
type AnalysisRequest struct {
	Key          string
	ReferenceKey string
	VegCodes     []int
	BuiltupCodes []int
}

// ClassArea is the exact-area breakdown for one class.
type ClassArea struct {
	Code       int     `json:"class_code"`
	Label      string  `json:"label"`
	PixelCount int64   `json:"pixel_count"`
	AreaM2     float64 `json:"area_m2"`
	AreaKm2    float64 `json:"area_km2"`
	AreaHa     float64 `json:"area_hectares"`
	Percentage float64 `json:"percentage"`
}

// GroupTotal is the summed exact area of a class group.
type GroupTotal struct {
	M2  float64 `json:"m2"`
	Km2 float64 `json:"km2"`
	Ha  float64 `json:"hectares"`
}

// Analysis is the exact-area analytics response. Area figures come from
// metric-reprojected pixel dimensions, never from a degree conversion
// constant.
type Analysis struct {
	Year           string      `json:"year"`
	Table          string      `json:"table_name"`
	TotalPixels    int64       `json:"total_pixels"`
	PixelSizeM2    float64     `json:"pixel_size_m2"`
	Classes        []ClassArea `json:"class_breakdown"`
	Vegetation     GroupTotal  `json:"vegetation_total"`
	Builtup        GroupTotal  `json:"builtup_total"`
	TotalAreaM2    float64     `json:"total_area_m2"`
	TotalAreaKm2   float64     `json:"total_area_km2"`
	TotalAreaHa    float64     `json:"total_area_hectares"`
	ReferenceYear  string      `json:"reference_year,omitempty"`
	VegChangePct   *float64    `json:"vegetation_change_percentage,omitempty"`
	BuiltChangePct *float64    `json:"builtup_change_percentage,omitempty"`
}

// Analyze computes the exact-area class breakdown for req.Key. When a
// reference key is given and resolves, percentage-change metrics for the
// vegetation and built-up groups are attached; when it does not resolve the
// change metrics stay nil, never zero.
func (e *Engine) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	vegCodes := req.VegCodes
	if len(vegCodes) == 0 {
		vegCodes = e.cfg.VegCodes
	}
	builtupCodes := req.BuiltupCodes
	if len(builtupCodes) == 0 {
		builtupCodes = e.cfg.BuiltupCodes
	}

	table, err := e.cat.Resolve(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if err := checkIdent(table); err != nil {
		return nil, err
	}

	pixelSizeM2, err := e.metricPixelSize(ctx, table)
	if err != nil {
		return nil, err
	}

	counts, err := e.metricClassCounts(ctx, table)
	if err != nil {
		return nil, err
	}

	var totalPixels int64
	for _, c := range counts {
		totalPixels += c.PixelCount
	}

	a := &Analysis{
		Year:        req.Key,
		Table:       table,
		TotalPixels: totalPixels,
		PixelSizeM2: pixelSizeM2,
	}

	vegSet := toSet(vegCodes)
	builtSet := toSet(builtupCodes)
	for _, c := range counts {
		areaM2 := float64(c.PixelCount) * pixelSizeM2
		ca := ClassArea{
			Code:       c.Code,
			Label:      legend.Label(c.Code),
			PixelCount: c.PixelCount,
			AreaM2:     areaM2,
			AreaKm2:    areaM2 / 1e6,
			AreaHa:     areaM2 / 1e4,
		}
		if totalPixels > 0 {
			ca.Percentage = round2(float64(c.PixelCount) / float64(totalPixels) * 100)
		}
		a.Classes = append(a.Classes, ca)
		a.TotalAreaM2 += areaM2

		switch {
		case vegSet[c.Code]:
			a.Vegetation.M2 += areaM2
		case builtSet[c.Code]:
			a.Builtup.M2 += areaM2
		}
	}
	a.Vegetation.Km2 = a.Vegetation.M2 / 1e6
	a.Vegetation.Ha = a.Vegetation.M2 / 1e4
	a.Builtup.Km2 = a.Builtup.M2 / 1e6
	a.Builtup.Ha = a.Builtup.M2 / 1e4
	a.TotalAreaKm2 = a.TotalAreaM2 / 1e6
	a.TotalAreaHa = a.TotalAreaM2 / 1e4

	if req.ReferenceKey != "" {
		a.ReferenceYear = req.ReferenceKey
		refVeg, refBuilt, err := e.referenceTotals(ctx, req.ReferenceKey, vegSet, builtSet)
		if err != nil {
			return nil, err
		}
		if refVeg != nil {
			a.VegChangePct = percentChange(a.Vegetation.M2, *refVeg)
			a.BuiltChangePct = percentChange(a.Builtup.M2, *refBuilt)
		}
	}

	return a, nil
}

// referenceTotals computes vegetation and built-up group areas for the
// reference year. Returns nils (not zeros) when the reference year has no
// dataset, so the caller omits the change metric.
func (e *Engine) referenceTotals(ctx context.Context, key string, vegSet, builtSet map[int]bool) (*float64, *float64, error) {
	table, err := e.cat.Resolve(ctx, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if err := checkIdent(table); err != nil {
		return nil, nil, err
	}

	pixelSizeM2, err := e.metricPixelSize(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	counts, err := e.metricClassCounts(ctx, table)
	if err != nil {
		return nil, nil, err
	}

	var veg, built float64
	for _, c := range counts {
		area := float64(c.PixelCount) * pixelSizeM2
		switch {
		case vegSet[c.Code]:
			veg += area
		case builtSet[c.Code]:
			built += area
		}
	}
	return &veg, &built, nil
}

// metricPixelSize returns the area of one pixel in square meters, taken from
// the raster reprojected to the configured metric SRID. The store performs
// the reprojection; only the resulting pixel dimensions are consumed here.
func (e *Engine) metricPixelSize(ctx context.Context, table string) (float64, error) {
	sql := fmt.Sprintf(`
		SELECT ST_PixelWidth(ST_Transform(rast, %d)),
		       ST_PixelHeight(ST_Transform(rast, %d))
		FROM %s
		LIMIT 1
	`, e.cfg.MetricSRID, e.cfg.MetricSRID, table)

	var w, h float64
	err := e.pool.QueryRow(ctx, sql).Scan(&w, &h)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(ErrMetadataUnavailable, "table %s", table)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "raster: metric pixel size for %s", table)
	}
	return math.Abs(w * h), nil
}

// metricClassCounts counts pixels per class on the metric-reprojected
// raster so counts and pixel size come from the same reference frame.
func (e *Engine) metricClassCounts(ctx context.Context, table string) ([]ClassCount, error) {
	rastExpr := fmt.Sprintf("ST_Transform(rast, %d)", e.cfg.MetricSRID)
	return e.classCounts(ctx, table, rastExpr, 0)
}

// percentChange returns ((target-reference)/reference)*100, or nil when the
// reference is zero.
func percentChange(target, reference float64) *float64 {
	if reference == 0 {
		return nil
	}
	v := round2((target - reference) / reference * 100)
	return &v
}

func toSet(codes []int) map[int]bool {
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}
