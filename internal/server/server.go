// Package server exposes the query API over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/config"
	"github.com/terrascope/lulc/internal/overlay"
	"github.com/terrascope/lulc/internal/raster"
)

// Server serves read-only analytics over the ingested datasets. Writes stay
// on the CLI.
type Server struct {
	engine *raster.Engine
	cat    *catalog.Catalog
	cache  *overlay.Cache
	cfg    config.ServerConfig
	log    *zap.Logger
}

// New wires the query API against an analytics engine and overlay cache.
func New(engine *raster.Engine, cat *catalog.Catalog, cache *overlay.Cache, cfg config.ServerConfig) *Server {
	return &Server{
		engine: engine,
		cat:    cat,
		cache:  cache,
		cfg:    cfg,
		log:    zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverer)
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimit)

	r.Get("/health", s.handleHealth)
	r.Route("/raster", func(r chi.Router) {
		r.Get("/summary", s.handleDatasetSummary)
		r.Get("/years", s.handleYears)
		r.Get("/all-years/classes.geojson", s.handleAllYearsGeoJSON)
		r.Route("/{year}", func(r chi.Router) {
			r.Get("/", s.handleMetadata)
			r.Get("/class-counts", s.handleClassCounts)
			r.Get("/analysis", s.handleAnalysis)
			r.Get("/summary", s.handleSummary)
			r.Get("/classes.geojson", s.handleClassesGeoJSON)
		})
	})
	return r
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
