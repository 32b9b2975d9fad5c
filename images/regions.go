package images

import (
	"fmt"
	"image"
)

// Region is an axis-aligned bounding box around one connected area of change,
// together with the area of the contour it was derived from.
type Region struct {
	// Rect is the bounding rectangle of the contour.
	Rect image.Rectangle
	// Area is the contour area in pixels.
	Area float64
}

// X returns the left edge of the region.
func (r Region) X() int { return r.Rect.Min.X }

// Y returns the top edge of the region.
func (r Region) Y() int { return r.Rect.Min.Y }

// Width returns the width of the region.
func (r Region) Width() int { return r.Rect.Dx() }

// Height returns the height of the region.
func (r Region) Height() int { return r.Rect.Dy() }

func (r Region) String() string {
	return fmt.Sprintf("region(%d,%d %dx%d area=%.0f)", r.X(), r.Y(), r.Width(), r.Height(), r.Area)
}

// FilterRegions keeps only the regions whose area is strictly greater than
// minArea. A region exactly at the threshold is discarded; existing tuned
// configurations depend on this.
//
// Arguments:
//   - regions: Raw regions produced by a ChangeDetector.
//   - minArea: Minimum contour area, exclusive.
//
// Returns:
//   - []Region: The surviving regions in their original order. Nil when none survive.
func FilterRegions(regions []Region, minArea float64) []Region {
	var kept []Region
	for _, r := range regions {
		if r.Area > minArea {
			kept = append(kept, r)
		}
	}
	return kept
}
