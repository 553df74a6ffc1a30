package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/config"
	"github.com/terrascope/lulc/internal/overlay"
	"github.com/terrascope/lulc/internal/raster"
)

func newTestServer(t *testing.T, cfg config.ServerConfig) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cat := catalog.New(mock, "public")
	engine := raster.NewEngine(mock, cat, config.AnalysisConfig{
		MetricSRID:   32643,
		VegCodes:     []int{1, 2, 3, 4, 5},
		BuiltupCodes: []int{6, 7, 8, 9, 10, 11},
	})
	cache := overlay.NewCache(mock, cat, config.OverlayConfig{
		DefaultTolerance: 0.0001,
		ExportTolerance:  0.001,
		AllYearsTable:    "lulc_classes_all_years",
	})
	return New(engine, cat, cache, cfg), mock
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	rec := get(t, s.Router(), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestYears(t *testing.T) {
	s, mock := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	mock.ExpectQuery("SELECT table_name").
		WithArgs("public", "%").
		WillReturnRows(pgxmock.NewRows([]string{"table_name"}).
			AddRow("islamabad_lulc_2020").
			AddRow("islamabad_lulc_2021"))

	rec := get(t, s.Router(), "/raster/years")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"years":["2020","2021"]}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadata_UnknownYear(t *testing.T) {
	s, mock := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	mock.ExpectQuery("SELECT table_name").
		WithArgs("public", "%1999").
		WillReturnRows(pgxmock.NewRows([]string{"table_name"}))

	rec := get(t, s.Router(), "/raster/1999")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "no dataset")
}

func TestMetadata(t *testing.T) {
	s, mock := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	mock.ExpectQuery("SELECT table_name").
		WithArgs("public", "%2020").
		WillReturnRows(pgxmock.NewRows([]string{"table_name"}).AddRow("islamabad_lulc_2020"))
	mock.ExpectQuery(`SELECT \(md\)\.width`).
		WillReturnRows(pgxmock.NewRows([]string{
			"width", "height", "numbands", "srid",
			"upperleftx", "upperlefty", "scalex", "scaley", "skewx", "skewy",
		}).AddRow(1000, 800, 1, 4326, 72.8, 33.9, 0.0001, -0.0001, 0.0, 0.0))

	rec := get(t, s.Router(), "/raster/2020")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Year     string           `json:"year"`
		Table    string           `json:"table_name"`
		Metadata *raster.Metadata `json:"raster_metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2020", body.Year)
	assert.Equal(t, "islamabad_lulc_2020", body.Table)
	assert.Equal(t, 1000, body.Metadata.Width)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalysis_MalformedCodes(t *testing.T) {
	s, _ := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	rec := get(t, s.Router(), "/raster/2020/analysis?veg=1,x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassesGeoJSON(t *testing.T) {
	s, mock := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("public", "lulc_classes_2020").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("ST_SimplifyPreserveTopology").
		WithArgs(0.0001).
		WillReturnRows(pgxmock.NewRows([]string{"class_code", "geojson"}).
			AddRow(2, []byte(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}`)))

	rec := get(t, s.Router(), "/raster/2020/classes.geojson")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Trees", fc.Features[0].Properties["label"])
	assert.Equal(t, "2020", fc.Features[0].Properties["year"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassesGeoJSON_WithMeta(t *testing.T) {
	s, mock := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("public", "lulc_classes_2020").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("ST_SimplifyPreserveTopology").
		WithArgs(0.0001).
		WillReturnRows(pgxmock.NewRows([]string{"class_code", "geojson"}).
			AddRow(1, []byte(`{"type":"MultiPolygon","coordinates":[]}`)))
	mock.ExpectQuery("SELECT table_name").
		WithArgs("public", "%2020").
		WillReturnRows(pgxmock.NewRows([]string{"table_name"}).AddRow("islamabad_lulc_2020"))
	mock.ExpectQuery(`SELECT \(md\)\.width`).
		WillReturnRows(pgxmock.NewRows([]string{
			"width", "height", "numbands", "srid",
			"upperleftx", "upperlefty", "scalex", "scaley", "skewx", "skewy",
		}).AddRow(100, 100, 1, 4326, 72.8, 33.9, 0.0001, -0.0001, 0.0, 0.0))

	rec := get(t, s.Router(), "/raster/2020/classes.geojson?meta=1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var fc struct {
		Metadata struct {
			TotalPixels int64   `json:"total_pixels"`
			PixelAreaM2 float64 `json:"pixel_area_m2_estimated"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, int64(10000), fc.Metadata.TotalPixels)
	assert.Greater(t, fc.Metadata.PixelAreaM2, 0.0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassesGeoJSON_MalformedTolerance(t *testing.T) {
	s, _ := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	rec := get(t, s.Router(), "/raster/2020/classes.geojson?tolerance=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllYearsGeoJSON(t *testing.T) {
	s, mock := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	mock.ExpectQuery("FROM lulc_classes_all_years").
		WithArgs(0.001).
		WillReturnRows(pgxmock.NewRows([]string{"year", "class_code", "geojson"}).
			AddRow("2020", 1, []byte(`{"type":"MultiPolygon","coordinates":[]}`)).
			AddRow("2021", 7, []byte(`{"type":"MultiPolygon","coordinates":[]}`)))

	rec := get(t, s.Router(), "/raster/all-years/classes.geojson?tolerance=0.001")
	assert.Equal(t, http.StatusOK, rec.Code)

	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "2021", fc.Features[1].Properties["year"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, config.ServerConfig{
		CORSOrigins:    []string{"*"},
		RequestsPerSec: 1,
		RequestBurst:   1,
	})
	router := s.Router()

	first := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, first.Code)

	second := get(t, router, "/health")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestRequestID_Echoed(t *testing.T) {
	s, _ := newTestServer(t, config.ServerConfig{CORSOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
