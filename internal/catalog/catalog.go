// Package catalog resolves dataset keys against the live PostGIS catalog.
//
// The catalog is the source of truth: nothing here hardcodes a year or a
// table name. Resolution is a pattern search over information_schema with a
// deterministic tie-break (lexicographic table name order, first match wins).
package catalog

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/terrascope/lulc/internal/db"
)

// ErrNotFound is returned when no table matches the requested key.
var ErrNotFound = eris.New("catalog: no dataset found")

// Bookkeeping tables that must never resolve as datasets: PostGIS internals,
// the ingestion ledgers, and the overlay cache tables.
var excludedTables = map[string]bool{
	"raster_columns":         true,
	"raster_overviews":       true,
	"spatial_ref_sys":        true,
	"geometry_columns":       true,
	"geography_columns":      true,
	"raster_imports":         true,
	"shapefile_imports":      true,
	"lulc_classes_all_years": true,
}

const cachePrefix = "lulc_classes_"

// Catalog introspects the store's table catalog.
type Catalog struct {
	pool   db.Pool
	schema string
}

// New creates a Catalog for the given schema.
func New(pool db.Pool, schema string) *Catalog {
	if schema == "" {
		schema = "public"
	}
	return &Catalog{pool: pool, schema: schema}
}

// Resolve maps a key (year) to the name of a stored dataset table. The key
// is matched as a table name suffix; candidates are scanned in lexicographic
// order and the first non-bookkeeping table wins. Returns ErrNotFound when
// nothing matches.
func (c *Catalog) Resolve(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrNotFound
	}

	sql := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_name LIKE $2
		ORDER BY table_name
	`
	rows, err := c.pool.Query(ctx, sql, c.schema, "%"+key)
	if err != nil {
		return "", eris.Wrapf(err, "catalog: resolve %q", key)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", eris.Wrap(err, "catalog: scan table name")
		}
		if excludedTables[name] || strings.HasPrefix(name, cachePrefix) {
			continue
		}
		return name, nil
	}
	if err := rows.Err(); err != nil {
		return "", eris.Wrapf(err, "catalog: resolve %q", key)
	}
	return "", ErrNotFound
}

// TableExists probes the catalog for a table, independent of any ledger.
// This defends against tables created outside the ingestion pipeline.
func (c *Catalog) TableExists(ctx context.Context, table string) (bool, error) {
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`
	var exists bool
	if err := c.pool.QueryRow(ctx, sql, c.schema, table).Scan(&exists); err != nil {
		return false, eris.Wrapf(err, "catalog: table exists %s", table)
	}
	return exists, nil
}

// ListDatasets returns all dataset tables matching any of the given name
// patterns (SQL LIKE syntax), excluding bookkeeping and cache tables, in
// lexicographic order. With no patterns it returns every dataset table.
func (c *Catalog) ListDatasets(ctx context.Context, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"%"}
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND (`)
	args := []any{c.schema}
	for i, p := range patterns {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("table_name LIKE $")
		sb.WriteString(strconv.Itoa(i + 2))
		args = append(args, p)
	}
	sb.WriteString(") ORDER BY table_name")

	rows, err := c.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: list datasets")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "catalog: scan table name")
		}
		if excludedTables[name] || strings.HasPrefix(name, cachePrefix) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Years extracts the distinct trailing 4-digit year keys from dataset table
// names, sorted ascending.
func (c *Catalog) Years(ctx context.Context) ([]string, error) {
	tables, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var years []string
	for _, t := range tables {
		y := trailingYear(t)
		if y == "" || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Strings(years)
	return years, nil
}

// trailingYear returns the trailing 4-digit run of a table name, or "".
func trailingYear(table string) string {
	if len(table) < 4 {
		return ""
	}
	tail := table[len(table)-4:]
	for _, r := range tail {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return tail
}
