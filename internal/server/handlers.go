package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/geojson"
	"github.com/terrascope/lulc/internal/raster"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondErr maps domain errors onto HTTP statuses. Results are all-or-
// nothing; a failed query never yields a partial body.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "no dataset for the requested year")
	case errors.Is(err, raster.ErrMetadataUnavailable):
		s.log.Error("metadata unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "dataset metadata unavailable")
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.cat.Years(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"years": years})
}

func (s *Server) handleDatasetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.SummarizeAll(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	year := chi.URLParam(r, "year")
	table, err := s.cat.Resolve(r.Context(), year)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	md, err := s.engine.Metadata(r.Context(), table)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":            year,
		"table_name":      table,
		"raster_metadata": md,
	})
}

func (s *Server) handleClassCounts(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ClassCounts(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	req := raster.AnalysisRequest{
		Key:          chi.URLParam(r, "year"),
		ReferenceKey: r.URL.Query().Get("reference"),
	}

	var err error
	if req.VegCodes, err = parseCodes(r.URL.Query().Get("veg")); err != nil {
		writeError(w, http.StatusBadRequest, "malformed veg codes")
		return
	}
	if req.BuiltupCodes, err = parseCodes(r.URL.Query().Get("builtup")); err != nil {
		writeError(w, http.StatusBadRequest, "malformed builtup codes")
		return
	}

	res, err := s.engine.Analyze(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Summarize(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleClassesGeoJSON(w http.ResponseWriter, r *http.Request) {
	tolerance, err := parseTolerance(r.URL.Query().Get("tolerance"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed tolerance")
		return
	}

	year := chi.URLParam(r, "year")
	shapes, err := s.cache.Classes(r.Context(), year, tolerance)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	for i := range shapes {
		shapes[i].Year = year
	}

	var out []byte
	if wantMeta(r) {
		meta, err := s.collectionMeta(r, year)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		out, err = geojson.SummaryCollection(shapes, *meta)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
	} else {
		out, err = geojson.Collection(shapes)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
	}
	writeRaw(w, out)
}

func wantMeta(r *http.Request) bool {
	v := r.URL.Query().Get("meta")
	return v == "1" || v == "true"
}

// collectionMeta builds the estimated-area metadata block for a feature
// collection. Areas here are constant-based estimates; exact figures come
// from the analysis endpoint.
func (s *Server) collectionMeta(r *http.Request, year string) (*geojson.Meta, error) {
	table, err := s.cat.Resolve(r.Context(), year)
	if err != nil {
		return nil, err
	}
	md, err := s.engine.Metadata(r.Context(), table)
	if err != nil {
		return nil, err
	}

	pixelArea := raster.EstimatedPixelAreaM2(md.ScaleX, md.ScaleY)
	total := md.TotalPixels()
	return &geojson.Meta{
		Year:             year,
		TotalPixels:      total,
		PixelAreaM2:      pixelArea,
		EstimatedAreaKm2: float64(total) * pixelArea / 1e6,
	}, nil
}

func (s *Server) handleAllYearsGeoJSON(w http.ResponseWriter, r *http.Request) {
	tolerance, err := parseTolerance(r.URL.Query().Get("tolerance"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed tolerance")
		return
	}

	shapes, err := s.cache.AllYears(r.Context(), tolerance)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	out, err := geojson.Collection(shapes)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeRaw(w, out)
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseCodes parses a comma-separated class code list; empty means "use the
// configured defaults".
func parseCodes(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]int, 0, len(parts))
	for _, p := range parts {
		code, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func parseTolerance(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
