package ingest

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terrascope/lulc/internal/config"
	"github.com/terrascope/lulc/internal/db"
)

// Loader materializes a source file into a store table. Implemented by
// ToolLoader (raster2pgsql / ogr2ogr subprocesses, with an optional native
// shapefile path) and by test fakes.
type Loader interface {
	LoadRaster(ctx context.Context, path, table string) error
	LoadShapefile(ctx context.Context, shpPath, table string) error
}

// ToolLoader invokes the external PostGIS loading tools.
type ToolLoader struct {
	cfg         config.IngestConfig
	databaseURL string
	schema      string
	pool        db.Pool // only used by the native shapefile path
	log         *zap.Logger
}

// NewToolLoader creates a loader for the given store. pool may be nil when
// native shapefile loading is disabled.
func NewToolLoader(cfg config.IngestConfig, databaseURL, schema string, pool db.Pool) *ToolLoader {
	if schema == "" {
		schema = "public"
	}
	return &ToolLoader{
		cfg:         cfg,
		databaseURL: databaseURL,
		schema:      schema,
		pool:        pool,
		log:         zap.L().With(zap.String("component", "ingest.loader")),
	}
}

// LoadRaster pipes `raster2pgsql -s <srid> -I -C -M <path> <schema>.<table>`
// into psql. A non-zero exit from either process fails the load; nothing is
// recorded in the ledger on failure, so the file stays eligible for retry.
func (l *ToolLoader) LoadRaster(ctx context.Context, path, table string) error {
	qualified := l.schema + "." + table

	r2p := exec.CommandContext(ctx, l.cfg.Raster2pgsql,
		"-s", strconv.Itoa(l.cfg.SRID), "-I", "-C", "-M", path, qualified)
	psql := exec.CommandContext(ctx, l.cfg.Psql, l.databaseURL, "-v", "ON_ERROR_STOP=1", "-q")

	pipe, err := r2p.StdoutPipe()
	if err != nil {
		return eris.Wrap(err, "ingest: raster2pgsql stdout pipe")
	}
	psql.Stdin = pipe
	psql.Stdout = io.Discard

	var r2pErr, psqlErr bytes.Buffer
	r2p.Stderr = &r2pErr
	psql.Stderr = &psqlErr

	l.log.Info("loading raster",
		zap.String("file", path),
		zap.String("table", qualified),
	)

	if err := r2p.Start(); err != nil {
		return eris.Wrapf(err, "ingest: start raster2pgsql for %s", path)
	}
	if err := psql.Start(); err != nil {
		_ = r2p.Process.Kill()
		_ = r2p.Wait()
		return eris.Wrapf(err, "ingest: start psql for %s", path)
	}

	r2pWait := r2p.Wait()
	psqlWait := psql.Wait()

	if r2pWait != nil {
		return eris.Wrapf(r2pWait, "ingest: raster2pgsql %s: %s", path, trimTool(r2pErr.String()))
	}
	if psqlWait != nil {
		return eris.Wrapf(psqlWait, "ingest: psql load %s: %s", qualified, trimTool(psqlErr.String()))
	}
	return nil
}

// LoadShapefile loads a shapefile via ogr2ogr, or via the native go-shp
// COPY path when ingest.native_shapefile_load is set.
func (l *ToolLoader) LoadShapefile(ctx context.Context, shpPath, table string) error {
	if l.cfg.NativeShapes {
		return l.loadShapefileNative(ctx, shpPath, table)
	}

	pgConn, err := pgConnString(l.databaseURL)
	if err != nil {
		return err
	}

	args := []string{
		"-f", "PostgreSQL",
		pgConn,
		shpPath,
		"-nln", table,
		"-nlt", "PROMOTE_TO_MULTI",
		"-lco", "GEOMETRY_NAME=geom",
		"-lco", "FID=id",
	}
	if l.cfg.SRID != 0 {
		args = append(args, "-a_srs", "EPSG:"+strconv.Itoa(l.cfg.SRID))
	}

	l.log.Info("loading shapefile",
		zap.String("file", shpPath),
		zap.String("table", table),
	)

	cmd := exec.CommandContext(ctx, l.cfg.Ogr2ogr, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = io.Discard

	if err := cmd.Run(); err != nil {
		return eris.Wrapf(err, "ingest: ogr2ogr %s: %s", shpPath, trimTool(stderr.String()))
	}
	return nil
}

// pgConnString converts a postgres:// URL into the keyword/value form that
// ogr2ogr's PG driver expects.
func pgConnString(databaseURL string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", eris.Wrap(err, "ingest: parse database url")
	}

	parts := []string{"PG:host=" + u.Hostname()}
	if port := u.Port(); port != "" {
		parts = append(parts, "port="+port)
	}
	if dbname := strings.TrimPrefix(u.Path, "/"); dbname != "" {
		parts = append(parts, "dbname="+dbname)
	}
	if u.User != nil {
		if user := u.User.Username(); user != "" {
			parts = append(parts, "user="+user)
		}
		if pass, ok := u.User.Password(); ok {
			parts = append(parts, "password="+pass)
		}
	}
	return strings.Join(parts, " "), nil
}

// trimTool compacts tool stderr for error messages.
func trimTool(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 400 {
		s = s[:400] + "..."
	}
	if s == "" {
		return "(no stderr)"
	}
	return s
}
