package geojson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var squareMultiPolygon = []byte(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]]]}`)

func TestCollection(t *testing.T) {
	out, err := Collection([]ClassShape{
		{Code: 2, Label: "Trees", Geometry: squareMultiPolygon},
		{Year: "2020", Code: 7, Label: "Built Area", Geometry: squareMultiPolygon},
	})
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type       string          `json:"type"`
			Geometry   json.RawMessage `json:"geometry"`
			Properties map[string]any  `json:"properties"`
		} `json:"features"`
		Metadata json.RawMessage `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(out, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Feature", fc.Features[0].Type)
	assert.Equal(t, float64(2), fc.Features[0].Properties["class_code"])
	assert.Equal(t, "Trees", fc.Features[0].Properties["label"])
	assert.NotContains(t, fc.Features[0].Properties, "year")
	assert.Equal(t, "2020", fc.Features[1].Properties["year"])
	assert.Nil(t, fc.Metadata)
}

func TestCollection_Empty(t *testing.T) {
	out, err := Collection(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(out))
}

func TestCollection_BadGeometry(t *testing.T) {
	_, err := Collection([]ClassShape{{Code: 1, Geometry: []byte(`{"type":"Nope"}`)}})
	assert.Error(t, err)
}

func TestSummaryCollection(t *testing.T) {
	out, err := SummaryCollection(
		[]ClassShape{{Code: 1, Label: "Water", Geometry: squareMultiPolygon}},
		Meta{Year: "2020", TotalPixels: 10000, PixelAreaM2: 123.9, EstimatedAreaKm2: 1.24},
	)
	require.NoError(t, err)

	var fc struct {
		Metadata Meta `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(out, &fc))
	assert.Equal(t, "2020", fc.Metadata.Year)
	assert.Equal(t, int64(10000), fc.Metadata.TotalPixels)
	assert.Equal(t, 123.9, fc.Metadata.PixelAreaM2)
}
