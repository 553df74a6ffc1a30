package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/terrascope/lulc/internal/db"
)

// Ledger table names. One ledger per source kind, same shape.
const (
	RasterLedgerTable    = "raster_imports"
	ShapefileLedgerTable = "shapefile_imports"
)

// ImportRecord is one append-only row of an ingestion ledger.
type ImportRecord struct {
	ID        int       `json:"id"`
	Filename  string    `json:"filename"`
	Checksum  string    `json:"checksum"`
	TableName string    `json:"table_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger tracks which (filename, checksum) pairs have been ingested into
// which derived tables. Rows are never updated or deleted.
type Ledger struct {
	pool  db.Pool
	table string
}

// NewRasterLedger returns the ledger backing raster ingestion.
func NewRasterLedger(pool db.Pool) *Ledger {
	return &Ledger{pool: pool, table: RasterLedgerTable}
}

// NewShapefileLedger returns the ledger backing shapefile ingestion.
func NewShapefileLedger(pool db.Pool) *Ledger {
	return &Ledger{pool: pool, table: ShapefileLedgerTable}
}

// EnsureSchema enables the PostGIS extensions and creates both ledger tables.
// Safe to call on every run.
func EnsureSchema(ctx context.Context, pool db.Pool) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE EXTENSION IF NOT EXISTS postgis_raster`,
		`CREATE TABLE IF NOT EXISTS ` + RasterLedgerTable + ` (
			id SERIAL PRIMARY KEY,
			filename TEXT NOT NULL,
			checksum TEXT NOT NULL,
			table_name TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(filename, checksum)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + ShapefileLedgerTable + ` (
			id SERIAL PRIMARY KEY,
			filename TEXT NOT NULL,
			checksum TEXT NOT NULL,
			table_name TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(filename, checksum)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "ingest: ensure schema")
		}
	}
	return nil
}

// HasImported reports whether this exact (filename, checksum) pair was
// already recorded.
func (l *Ledger) HasImported(ctx context.Context, filename, checksum string) (bool, error) {
	sql := `SELECT EXISTS (SELECT 1 FROM ` + l.table + ` WHERE filename = $1 AND checksum = $2)`
	var exists bool
	if err := l.pool.QueryRow(ctx, sql, filename, checksum).Scan(&exists); err != nil {
		return false, eris.Wrapf(err, "ingest: ledger lookup %s", filename)
	}
	return exists, nil
}

// Record appends a successful import. A duplicate insert for the same
// (filename, checksum) is a no-op, not an error, so a racing orchestrator
// cannot corrupt the ledger.
func (l *Ledger) Record(ctx context.Context, filename, checksum, tableName string) error {
	sql := `
		INSERT INTO ` + l.table + ` (filename, checksum, table_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (filename, checksum) DO NOTHING
	`
	if _, err := l.pool.Exec(ctx, sql, filename, checksum, tableName); err != nil {
		return eris.Wrapf(err, "ingest: record import %s", filename)
	}
	return nil
}

// List returns all ledger rows, newest first.
func (l *Ledger) List(ctx context.Context) ([]ImportRecord, error) {
	sql := `
		SELECT id, filename, checksum, table_name, created_at
		FROM ` + l.table + `
		ORDER BY created_at DESC, id DESC
	`
	rows, err := l.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list ledger")
	}
	defer rows.Close()

	var records []ImportRecord
	for rows.Next() {
		var r ImportRecord
		if err := rows.Scan(&r.ID, &r.Filename, &r.Checksum, &r.TableName, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "ingest: scan ledger row")
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
