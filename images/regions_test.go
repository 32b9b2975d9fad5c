package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterRegions(t *testing.T) {
	at := func(area float64) Region {
		return Region{Rect: image.Rect(0, 0, 10, 10), Area: area}
	}

	tests := []struct {
		name    string
		regions []Region
		minArea float64
		want    []float64
	}{
		{name: "area equal to minimum is excluded", regions: []Region{at(500)}, minArea: 500, want: nil},
		{name: "area one above minimum is included", regions: []Region{at(501)}, minArea: 500, want: []float64{501}},
		{name: "order preserved", regions: []Region{at(900), at(10), at(600)}, minArea: 500, want: []float64{900, 600}},
		{name: "zero minimum keeps positive areas", regions: []Region{at(0), at(1)}, minArea: 0, want: []float64{1}},
		{name: "no regions", regions: nil, minArea: 500, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRegions(tt.regions, tt.minArea)
			var areas []float64
			for _, r := range got {
				areas = append(areas, r.Area)
			}
			assert.Equal(t, tt.want, areas)
		})
	}
}

func TestRegionAccessors(t *testing.T) {
	r := Region{Rect: image.Rect(12, 34, 112, 84), Area: 5000}
	assert.Equal(t, 12, r.X())
	assert.Equal(t, 34, r.Y())
	assert.Equal(t, 100, r.Width())
	assert.Equal(t, 50, r.Height())
	assert.Equal(t, "region(12,34 100x50 area=5000)", r.String())
}
