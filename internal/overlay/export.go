package overlay

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/lulc/internal/geojson"
)

// Export writes one GeoJSON feature collection per key into dir, using the
// coarser export tolerance. The no-data class is dropped from exports. When
// keys is empty every cataloged year is exported. Returns the written paths.
func (c *Cache) Export(ctx context.Context, dir string, keys []string) ([]string, error) {
	if dir == "" {
		dir = c.cfg.ExportDir
	}
	if len(keys) == 0 {
		years, err := c.cat.Years(ctx)
		if err != nil {
			return nil, err
		}
		keys = years
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "overlay: create export dir %s", dir)
	}

	var written []string
	for _, key := range keys {
		shapes, err := c.Classes(ctx, key, c.cfg.ExportTolerance)
		if err != nil {
			return written, err
		}

		kept := shapes[:0]
		for _, s := range shapes {
			if s.Code == 0 {
				continue
			}
			s.Year = key
			kept = append(kept, s)
		}

		out, err := geojson.Collection(kept)
		if err != nil {
			return written, err
		}

		path := filepath.Join(dir, cacheTablePrefix+key+".geojson")
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return written, eris.Wrapf(err, "overlay: write %s", path)
		}
		written = append(written, path)
		c.log.Info("exported class polygons",
			zap.String("key", key),
			zap.String("path", path),
			zap.Int("features", len(kept)))
	}
	return written, nil
}
