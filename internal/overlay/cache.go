// Package overlay serves vectorized class polygons, materializing per-year
// cache tables on first read.
package overlay

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/config"
	"github.com/terrascope/lulc/internal/db"
)

const cacheTablePrefix = "lulc_classes_"

// keyPattern restricts cache keys to what survives table-name interpolation.
var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Cache materializes and reads per-year class polygon tables. The first read
// of a year pays the vectorization cost; later reads hit the cache table.
type Cache struct {
	pool db.Pool
	cat  *catalog.Catalog
	cfg  config.OverlayConfig
	sf   singleflight.Group
	log  *zap.Logger
}

// NewCache creates an overlay cache over the given pool and catalog.
func NewCache(pool db.Pool, cat *catalog.Catalog, cfg config.OverlayConfig) *Cache {
	return &Cache{
		pool: pool,
		cat:  cat,
		cfg:  cfg,
		log:  zap.L().With(zap.String("component", "overlay.cache")),
	}
}

// CacheTable returns the cache table name for a key, or an error when the
// key cannot form a safe identifier.
func CacheTable(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", eris.Errorf("overlay: invalid cache key %q", key)
	}
	return cacheTablePrefix + key, nil
}

// Ensure guarantees the cache table for key exists, materializing it from
// the source raster if needed. Concurrent callers for the same key share one
// check-and-materialize flight; the table is additionally created inside a
// transaction with a re-check, so a race lost to another process still
// cannot double-create.
func (c *Cache) Ensure(ctx context.Context, key string) (string, bool, error) {
	cacheTable, err := CacheTable(key)
	if err != nil {
		return "", false, err
	}

	created, err, _ := c.sf.Do(key, func() (interface{}, error) {
		exists, err := c.cat.TableExists(ctx, cacheTable)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
		if err := c.materialize(ctx, key, cacheTable); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return "", false, err
	}
	return cacheTable, created.(bool), nil
}

func (c *Cache) materialize(ctx context.Context, key, cacheTable string) error {
	source, err := c.cat.Resolve(ctx, key)
	if err != nil {
		return err
	}

	c.log.Info("materializing class polygons",
		zap.String("key", key),
		zap.String("source", source),
		zap.String("cache_table", cacheTable))

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "overlay: begin materialize")
	}
	defer tx.Rollback(ctx)

	// Another process may have won the race between our existence check
	// and this transaction.
	var present bool
	err = tx.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, cacheTable).Scan(&present)
	if err != nil {
		return eris.Wrap(err, "overlay: re-check cache table")
	}
	if present {
		return nil
	}

	createSQL := fmt.Sprintf(`
		CREATE TABLE %s AS
		SELECT val::int AS class_code,
		       ST_MakeValid(ST_Union(geom))::geometry(MultiPolygon, 4326) AS geom
		FROM (
			SELECT (ST_DumpAsPolygons(rast)).*
			FROM %s
		) dumped
		WHERE geom IS NOT NULL
		GROUP BY val
	`, cacheTable, source)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return eris.Wrapf(err, "overlay: materialize %s", cacheTable)
	}

	indexSQL := fmt.Sprintf(`CREATE INDEX idx_%s_geom ON %s USING GIST (geom)`, cacheTable, cacheTable)
	if _, err := tx.Exec(ctx, indexSQL); err != nil {
		return eris.Wrapf(err, "overlay: index %s", cacheTable)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "overlay: commit %s", cacheTable)
	}
	return nil
}
