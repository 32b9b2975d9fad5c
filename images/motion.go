// Package images - This file contains the frame-differencing motion detector
// using OpenCV (via gocv).
//
// The ChangeDetector encapsulates the pipeline that turns a raw frame into a
// list of changed regions:
//  1. Preprocessing (grayscale, Gaussian blur).
//  2. Absolute difference against the previously observed frame.
//  3. Thresholding derived from the configured sensitivity.
//  4. Morphology (dilate twice, erode once) to merge fragments and drop specks.
//  5. External contour extraction.
//
// Pipeline Overview:
//
// ┌──────────────┐
// │ Input Frame  │
// └──────┬───────┘
// ┌────────────────────────────────┐
// │ Preprocessing (gray, blur 21)  │
// └──────┬─────────────────────────┘
// ┌────────────────────────────┐
// │ AbsDiff vs previous frame  │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Threshold (s * 2.55)       │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Morphology (dilate, erode) │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ External contours          │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Area filter (MotionDetector)│
// └────────────────────────────┘
//
// Usage:
//
//	det := images.NewMotionDetector(25, 500)
//	defer det.Close()
//
//	for {
//	    frame := getNextFrame()
//	    moving, regions, err := det.Detect(frame)
//	    ...
//	}
//
// Note: You must call Close() when finished to release native resources.
package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	// morphKernelSize is the side of the square structuring element used for cleanup.
	morphKernelSize = 5
	// dilateIterations merges nearby fragments before erosion.
	dilateIterations = 2
	// erodeIterations shrinks the merged mask back down.
	erodeIterations = 1
)

// SensitivityThreshold maps a 0-100 sensitivity onto the 0-255 intensity range.
// Lower sensitivity values produce lower thresholds, so smaller intensity
// differences register as change.
//
// Arguments:
//   - sensitivity: Sensitivity knob, 0 (most sensitive) to 100.
//
// Returns:
//   - float32: The binary threshold applied to the difference image.
func SensitivityThreshold(sensitivity int) float32 {
	return float32(float64(sensitivity) * 2.55)
}

// ChangeDetector compares each observed frame against the previous one and
// reports the connected regions that changed.
//
// It holds exactly one previous preprocessed frame. After N observations it
// holds the preprocessed form of frame N, and frame N was compared only with
// frame N-1. A ChangeDetector is not safe for concurrent use; every unit of
// work owns its own instance.
type ChangeDetector struct {
	threshold float32
	kernel    gocv.Mat
	previous  gocv.Mat
	hasPrev   bool

	gray    gocv.Mat
	blurred gocv.Mat
	diff    gocv.Mat
	mask    gocv.Mat
}

// NewChangeDetector constructs a ChangeDetector for the given sensitivity.
//
// Arguments:
//   - sensitivity: Sensitivity knob, 0 (most sensitive) to 100.
//
// Returns:
//   - *ChangeDetector: A detector in its initial (empty) state.
//
// @example
// det := images.NewChangeDetector(25)
// defer det.Close()
func NewChangeDetector(sensitivity int) *ChangeDetector {
	return &ChangeDetector{
		threshold: SensitivityThreshold(sensitivity),
		kernel:    gocv.GetStructuringElement(gocv.MorphRect, image.Pt(morphKernelSize, morphKernelSize)),
		previous:  gocv.NewMat(),
		gray:      gocv.NewMat(),
		blurred:   gocv.NewMat(),
		diff:      gocv.NewMat(),
		mask:      gocv.NewMat(),
	}
}

// Observe preprocesses frame, compares it with the previously observed frame
// and returns every external region of change, unfiltered.
//
// The first frame after construction or Reset is only stored and never
// reports change.
//
// Arguments:
//   - frame: The BGR (or already single-channel) frame. It is never modified.
//
// Returns:
//   - []Region: All detected regions; nil for the first frame.
//   - error: An error if the frame is empty or morphology fails.
func (d *ChangeDetector) Observe(frame gocv.Mat) ([]Region, error) {
	if frame.Empty() {
		return nil, errors.New("observe: empty frame")
	}

	Preprocess(frame, &d.gray, &d.blurred)

	if !d.hasPrev {
		d.blurred.CopyTo(&d.previous)
		d.hasPrev = true
		return nil, nil
	}

	gocv.AbsDiff(d.previous, d.blurred, &d.diff)
	gocv.Threshold(d.diff, &d.mask, d.threshold, 255, gocv.ThresholdBinary)

	for i := 0; i < dilateIterations; i++ {
		if err := gocv.Dilate(d.mask, &d.mask, d.kernel); err != nil {
			return nil, errors.Wrap(err, "dilate change mask")
		}
	}
	for i := 0; i < erodeIterations; i++ {
		if err := gocv.Erode(d.mask, &d.mask, d.kernel); err != nil {
			return nil, errors.Wrap(err, "erode change mask")
		}
	}

	contours := gocv.FindContours(d.mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		regions = append(regions, Region{
			Rect: gocv.BoundingRect(contour),
			Area: gocv.ContourArea(contour),
		})
	}

	d.blurred.CopyTo(&d.previous)

	return regions, nil
}

// Reset clears the previous frame, returning the detector to its initial
// state. Call it before any logically independent frame sequence: a new
// source, or a freshly seeked sub-range.
func (d *ChangeDetector) Reset() {
	d.previous.Close()
	d.previous = gocv.NewMat()
	d.hasPrev = false
}

// Close releases all OpenCV native resources used by the detector.
func (d *ChangeDetector) Close() {
	d.kernel.Close()
	d.previous.Close()
	d.gray.Close()
	d.blurred.Close()
	d.diff.Close()
	d.mask.Close()
}

// MotionDetector combines a ChangeDetector with the minimum area filter and
// yields the per-frame motion verdict.
type MotionDetector struct {
	changes *ChangeDetector
	minArea float64
}

// NewMotionDetector constructs a MotionDetector.
//
// Arguments:
//   - sensitivity: Sensitivity knob, 0 (most sensitive) to 100.
//   - minArea: Regions must have an area strictly greater than this to count.
//
// Returns:
//   - *MotionDetector: A detector in its initial state. Close it when done.
func NewMotionDetector(sensitivity int, minArea float64) *MotionDetector {
	return &MotionDetector{
		changes: NewChangeDetector(sensitivity),
		minArea: minArea,
	}
}

// Detect reports whether frame contains motion relative to the previously
// detected frame, along with the regions that survived the area filter.
//
// Arguments:
//   - frame: The frame to analyze.
//
// Returns:
//   - bool: true iff at least one region survived the area filter.
//   - []Region: The surviving regions.
//   - error: An error if the change detector failed.
func (m *MotionDetector) Detect(frame gocv.Mat) (bool, []Region, error) {
	raw, err := m.changes.Observe(frame)
	if err != nil {
		return false, nil, err
	}
	kept := FilterRegions(raw, m.minArea)
	return len(kept) > 0, kept, nil
}

// Reset returns the underlying change detector to its initial state.
func (m *MotionDetector) Reset() {
	m.changes.Reset()
}

// Close releases native resources.
func (m *MotionDetector) Close() {
	m.changes.Close()
}
