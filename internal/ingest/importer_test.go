package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrascope/lulc/internal/catalog"
	"github.com/terrascope/lulc/internal/checksum"
)

// fakeLoader counts invocations and optionally fails.
type fakeLoader struct {
	rasterCalls int
	shapeCalls  int
	err         error
}

func (f *fakeLoader) LoadRaster(ctx context.Context, path, table string) error {
	f.rasterCalls++
	return f.err
}

func (f *fakeLoader) LoadShapefile(ctx context.Context, shpPath, table string) error {
	f.shapeCalls++
	return f.err
}

func newTestImporter(t *testing.T, loader Loader) (*Importer, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cat := catalog.New(mock, "public")
	im := NewImporter(cat, NewRasterLedger(mock), NewShapefileLedger(mock), loader, 0)
	return im, mock
}

func writeRaster(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func existsRows(v bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"exists"}).AddRow(v)
}

func TestImportRaster_NewDataset(t *testing.T) {
	dir := t.TempDir()
	path := writeRaster(t, dir, "tile_2020.tif", "pixels")
	sum, err := checksum.SumFile(path)
	require.NoError(t, err)

	loader := &fakeLoader{}
	im, mock := newTestImporter(t, loader)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tile_2020.tif", sum).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("public", "tile_2020").
		WillReturnRows(existsRows(false))
	mock.ExpectExec("INSERT INTO raster_imports").
		WithArgs("tile_2020.tif", sum, "tile_2020").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := im.ImportRaster(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, Imported, res.Outcome)
	assert.Equal(t, "tile_2020", res.Table)
	assert.Equal(t, sum, res.Checksum)
	assert.Equal(t, 1, loader.rasterCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRaster_DuplicateSkipsLoader(t *testing.T) {
	dir := t.TempDir()
	path := writeRaster(t, dir, "tile_2020.tif", "pixels")
	sum, err := checksum.SumFile(path)
	require.NoError(t, err)

	loader := &fakeLoader{}
	im, mock := newTestImporter(t, loader)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tile_2020.tif", sum).
		WillReturnRows(existsRows(true))

	res, err := im.ImportRaster(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, SkipDuplicate, res.Outcome)
	assert.Zero(t, loader.rasterCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRaster_NameCollisionSkips(t *testing.T) {
	dir := t.TempDir()
	// Different content than whatever produced the existing table, but the
	// same normalized name.
	path := writeRaster(t, dir, "tile_2020.tif", "changed pixels")
	sum, err := checksum.SumFile(path)
	require.NoError(t, err)

	loader := &fakeLoader{}
	im, mock := newTestImporter(t, loader)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tile_2020.tif", sum).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("public", "tile_2020").
		WillReturnRows(existsRows(true))

	res, err := im.ImportRaster(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, SkipCollision, res.Outcome)
	assert.Zero(t, loader.rasterCalls, "existing table must not be touched")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRaster_LoaderFailureLeavesNoLedgerEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeRaster(t, dir, "tile_2021.tif", "pixels")
	sum, err := checksum.SumFile(path)
	require.NoError(t, err)

	loader := &fakeLoader{err: fmt.Errorf("raster2pgsql: exit status 1")}
	im, mock := newTestImporter(t, loader)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tile_2021.tif", sum).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("public", "tile_2021").
		WillReturnRows(existsRows(false))
	// No INSERT expectation: the ledger must stay clean for retry.

	res, err := im.ImportRaster(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, Failed, res.Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportRaster_InvalidName(t *testing.T) {
	loader := &fakeLoader{}
	im, _ := newTestImporter(t, loader)

	_, err := im.ImportRaster(context.Background(), "###.tif")
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Zero(t, loader.rasterCalls)
}

func TestRunRasters_IdempotentSecondRun(t *testing.T) {
	dir := t.TempDir()
	path := writeRaster(t, dir, "tile_2020.tif", "pixels")
	sum, err := checksum.SumFile(path)
	require.NoError(t, err)

	loader := &fakeLoader{}
	im, mock := newTestImporter(t, loader)

	// First run imports.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tile_2020.tif", sum).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("public", "tile_2020").
		WillReturnRows(existsRows(false))
	mock.ExpectExec("INSERT INTO raster_imports").
		WithArgs("tile_2020.tif", sum, "tile_2020").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Second run sees the ledger entry and skips.
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tile_2020.tif", sum).
		WillReturnRows(existsRows(true))

	first, err := im.RunRasters(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)
	assert.Zero(t, first.Duplicates)

	second, err := im.RunRasters(context.Background(), dir)
	require.NoError(t, err)
	assert.Zero(t, second.Imported)
	assert.Equal(t, 1, second.Duplicates)

	assert.Equal(t, 1, loader.rasterCalls, "loader runs exactly once across both runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRasters_SortedDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	pb := writeRaster(t, dir, "b_2021.tif", "b")
	pa := writeRaster(t, dir, "a_2020.tif", "a")
	sumA, _ := checksum.SumFile(pa)
	sumB, _ := checksum.SumFile(pb)

	loader := &fakeLoader{}
	im, mock := newTestImporter(t, loader)

	// a_2020 first, then b_2021, regardless of creation order.
	mock.ExpectQuery("SELECT EXISTS").WithArgs("a_2020.tif", sumA).WillReturnRows(existsRows(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("b_2021.tif", sumB).WillReturnRows(existsRows(true))

	report, err := im.RunRasters(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "a_2020.tif", report.Results[0].Source)
	assert.Equal(t, "b_2021.tif", report.Results[1].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}
