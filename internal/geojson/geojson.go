// Package geojson assembles class geometries into GeoJSON feature
// collections.
package geojson

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	gj "github.com/twpayne/go-geom/encoding/geojson"
)

// ClassShape is one class polygon as it comes off the store: a class code
// plus the serialized GeoJSON geometry.
type ClassShape struct {
	Year     string
	Code     int
	Label    string
	Geometry []byte
}

// Meta is the summary block attached to a summary collection. Area figures
// here are constant-based estimates, labeled as such.
type Meta struct {
	Year             string  `json:"year,omitempty"`
	TotalPixels      int64   `json:"total_pixels"`
	PixelAreaM2      float64 `json:"pixel_area_m2_estimated"`
	EstimatedAreaKm2 float64 `json:"estimated_area_km2"`
}

type featureCollection struct {
	Type     string        `json:"type"`
	Features []*gj.Feature `json:"features"`
	Metadata *Meta         `json:"metadata,omitempty"`
}

// Collection marshals shapes into a FeatureCollection. Every feature carries
// class_code and label properties; year is included when set on the shape.
func Collection(shapes []ClassShape) ([]byte, error) {
	return marshal(shapes, nil)
}

// SummaryCollection is Collection with a metadata block appended at the top
// level of the collection.
func SummaryCollection(shapes []ClassShape, meta Meta) ([]byte, error) {
	return marshal(shapes, &meta)
}

func marshal(shapes []ClassShape, meta *Meta) ([]byte, error) {
	fc := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]*gj.Feature, 0, len(shapes)),
	}
	for _, s := range shapes {
		var g geom.T
		if err := gj.Unmarshal(s.Geometry, &g); err != nil {
			return nil, eris.Wrapf(err, "geojson: class %d geometry", s.Code)
		}
		props := map[string]interface{}{
			"class_code": s.Code,
			"label":      s.Label,
		}
		if s.Year != "" {
			props["year"] = s.Year
		}
		fc.Features = append(fc.Features, &gj.Feature{
			Geometry:   g,
			Properties: props,
		})
	}
	fc.Metadata = meta

	out, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: marshal collection")
	}
	return out, nil
}
