package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/db"
	"github.com/terrascope/lulc/internal/overlay"
	"github.com/terrascope/lulc/internal/raster"
)

// appPool opens the shared connection pool from config.
func appPool(ctx context.Context) (*pgxpool.Pool, error) {
	return db.Connect(ctx, cfg.Store.DatabaseURL)
}

// appCatalog builds the dataset catalog over a pool.
func appCatalog(pool db.Pool) *catalog.Catalog {
	return catalog.New(pool, cfg.Store.Schema)
}

// appEngine builds the analytics engine over a pool.
func appEngine(pool db.Pool) *raster.Engine {
	return raster.NewEngine(pool, appCatalog(pool), cfg.Analysis)
}

// appOverlay builds the overlay cache over a pool.
func appOverlay(pool db.Pool) *overlay.Cache {
	return overlay.NewCache(pool, appCatalog(pool), cfg.Overlay)
}
