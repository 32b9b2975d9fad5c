// Package images - Frame normalization shared by every motion detection path.
package images

import (
	"image"

	"gocv.io/x/gocv"
)

// BlurKernelSize is the fixed Gaussian kernel used to suppress sensor noise
// before frames are compared. It must be odd.
const BlurKernelSize = 21

// Preprocess converts a BGR frame into a smoothed single-channel intensity
// image suitable for differencing.
//
// The conversion is deterministic and stateless: the same input always yields
// the same output, which keeps the sampling path and the clip annotation path
// in agreement for a given sensitivity.
//
// Arguments:
//   - src: The BGR frame to normalize. It is never modified.
//   - gray: Scratch Mat receiving the grayscale conversion.
//   - dst: Mat receiving the blurred grayscale result.
//
// @example
// gray, blurred := gocv.NewMat(), gocv.NewMat()
// defer gray.Close()
// defer blurred.Close()
// images.Preprocess(frame, &gray, &blurred)
func Preprocess(src gocv.Mat, gray, dst *gocv.Mat) {
	if src.Channels() == 1 {
		src.CopyTo(gray)
	} else {
		gocv.CvtColor(src, gray, gocv.ColorBGRToGray)
	}
	gocv.GaussianBlur(*gray, dst, image.Pt(BlurKernelSize, BlurKernelSize), 0, 0, gocv.BorderDefault)
}
