package ingest

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// ShapefileSet is the group of sibling files forming one logical shapefile
// dataset. shp/shx/dbf are required; prj is optional but joins the checksum
// when present.
type ShapefileSet struct {
	Base string // path without extension
}

func (s ShapefileSet) Shp() string { return s.Base + ".shp" }
func (s ShapefileSet) Shx() string { return s.Base + ".shx" }
func (s ShapefileSet) Dbf() string { return s.Base + ".dbf" }
func (s ShapefileSet) Prj() string { return s.Base + ".prj" }

// Name returns the source file name used as the ledger key.
func (s ShapefileSet) Name() string { return filepath.Base(s.Shp()) }

// Stem returns the base name without extension, used to derive the table name.
func (s ShapefileSet) Stem() string { return filepath.Base(s.Base) }

// Files lists the set members that exist, for checksumming.
func (s ShapefileSet) Files(exists func(string) bool) []string {
	files := []string{s.Shp(), s.Shx(), s.Dbf()}
	if exists(s.Prj()) {
		files = append(files, s.Prj())
	}
	return files
}

// FindShapefileSets walks a directory tree and returns every complete
// shapefile set, sorted by base path for deterministic runs. Sets missing a
// required sibling are dropped.
func FindShapefileSets(root string) ([]ShapefileSet, error) {
	present := map[string]bool{}
	var bases []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".shp":
			bases = append(bases, strings.TrimSuffix(path, filepath.Ext(path)))
			present[strings.ToLower(path)] = true
		case ".shx", ".dbf", ".prj":
			present[strings.ToLower(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: scan %s", root)
	}

	sort.Strings(bases)
	var sets []ShapefileSet
	for _, base := range bases {
		s := ShapefileSet{Base: base}
		if present[strings.ToLower(s.Shx())] && present[strings.ToLower(s.Dbf())] {
			sets = append(sets, s)
		}
	}
	return sets, nil
}

// ShapefileInfo summarizes a shapefile's contents, read before loading so
// malformed inputs fail early instead of mid-import.
type ShapefileInfo struct {
	GeometryType string
	Records      int
	Fields       []string
}

// DescribeShapefile opens a shapefile and reports its geometry type, record
// count, and attribute field names.
func DescribeShapefile(shpPath string) (*ShapefileInfo, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	info := &ShapefileInfo{GeometryType: "Unknown"}
	for _, f := range reader.Fields() {
		info.Fields = append(info.Fields, strings.TrimRight(f.String(), "\x00"))
	}

	for reader.Next() {
		_, shape := reader.Shape()
		if info.Records == 0 {
			info.GeometryType = shapeTypeName(shape)
		}
		info.Records++
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "ingest: read shapefile %s", shpPath)
	}
	return info, nil
}

func shapeTypeName(shape shp.Shape) string {
	switch shape.(type) {
	case *shp.Point:
		return "Point"
	case *shp.PolyLine:
		return "PolyLine"
	case *shp.Polygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}
