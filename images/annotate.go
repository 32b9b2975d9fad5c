package images

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	// RegionColor outlines motion regions.
	RegionColor = color.RGBA{0, 255, 0, 0}
	// TimestampColor is used for the timestamp overlay.
	TimestampColor = color.RGBA{255, 255, 255, 0}
)

// DrawRegions outlines every region on frame with a 2px rectangle.
func DrawRegions(frame *gocv.Mat, regions []Region) {
	for _, r := range regions {
		gocv.Rectangle(frame, r.Rect, RegionColor, 2)
	}
}

// DrawTimestamp writes the HH:MM:SS form of seconds in the top-left corner.
func DrawTimestamp(frame *gocv.Mat, seconds float64) {
	gocv.PutText(frame, FormatClockTimestamp(seconds), image.Pt(10, 30),
		gocv.FontHersheySimplex, 0.7, TimestampColor, 2)
}

// Annotate returns a copy of frame with regions outlined and the timestamp
// drawn. The caller owns the returned Mat.
func Annotate(frame gocv.Mat, regions []Region, seconds float64) gocv.Mat {
	out := frame.Clone()
	DrawRegions(&out, regions)
	DrawTimestamp(&out, seconds)
	return out
}

func splitSeconds(seconds float64) (h, m, s int) {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return total / 3600, (total % 3600) / 60, total % 60
}

// FormatStillTimestamp renders seconds as "00h05m30s", the form used in still
// image file names.
func FormatStillTimestamp(seconds float64) string {
	h, m, s := splitSeconds(seconds)
	return fmt.Sprintf("%02dh%02dm%02ds", h, m, s)
}

// FormatClockTimestamp renders seconds as "00:05:30".
func FormatClockTimestamp(seconds float64) string {
	h, m, s := splitSeconds(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatClipTimestamp renders seconds as "000530", the form used in clip file names.
func FormatClipTimestamp(seconds float64) string {
	h, m, s := splitSeconds(seconds)
	return fmt.Sprintf("%02d%02d%02d", h, m, s)
}
