// Package legend maps land-cover class codes to human-readable labels.
package legend

import "fmt"

// classLabels is the ESRI land-use/land-cover legend. It is package-private
// so callers cannot mutate it; all access goes through Label and Codes.
var classLabels = map[int]string{
	0:  "No Data",
	1:  "Water",
	2:  "Trees",
	3:  "Grass",
	4:  "Flooded Vegetation",
	5:  "Crops",
	6:  "Shrub/Scrub",
	7:  "Built Area",
	8:  "Bare Ground",
	9:  "Snow/Ice",
	10: "Clouds",
	11: "Rangeland",
}

// Label returns the label for a class code, falling back to "Class {code}"
// for codes outside the legend.
func Label(code int) string {
	if label, ok := classLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Class %d", code)
}

// Known reports whether the code has a legend entry.
func Known(code int) bool {
	_, ok := classLabels[code]
	return ok
}
