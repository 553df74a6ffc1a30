package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSumFile_MatchesSha256(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tile_2020.tif", "raster bytes")

	got, err := SumFile(path)
	require.NoError(t, err)

	want := sha256.Sum256([]byte("raster bytes"))
	assert.Equal(t, hex.EncodeToString(want[:]), got)
	assert.Len(t, got, 64)
}

func TestSum_OrderIndependent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.shp", "geometry")
	b := writeFile(t, dir, "b.dbf", "attributes")
	c := writeFile(t, dir, "c.shx", "index")

	first, err := Sum(a, b, c)
	require.NoError(t, err)
	second, err := Sum(c, a, b)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSum_ContentChangeChangesDigest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tile_2021.tif", "v1")

	before, err := SumFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	after, err := SumFile(path)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestSum_MissingFileFails(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.shp", "geometry")

	_, err := Sum(a, filepath.Join(dir, "missing.dbf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.dbf")
}

func TestSum_NoFiles(t *testing.T) {
	_, err := Sum()
	require.Error(t, err)
}
