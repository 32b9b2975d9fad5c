// Package motion - Motion sampling, event segmentation and clip extraction
// over decoded frame sources.
//
// Three independent passes share one per-frame signal, the verdict of an
// images.MotionDetector, but never share a detector instance:
//
//   - Sampler keeps debounced, annotated stills of motion moments.
//   - Segmenter coalesces consecutive motion samples into Events.
//   - ClipExtractor writes a padded, annotated clip around each Event.
//
// Every pass is synchronous and pulls one frame at a time. Cancellation is
// cooperative through the context and the progress sink; an interrupted
// pass returns what it gathered so far.
package motion

import (
	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid motion config")

// Config holds the detection, sampling and clip parameters.
//
// Durations are in seconds of source time, matching frame timestamps
// (frame index / native rate).
type Config struct {
	// Sensitivity is 0-100; lower values detect smaller intensity changes.
	Sensitivity int `json:"sensitivity"`
	// MinArea is the exclusive minimum contour area in pixels.
	MinArea float64 `json:"min_area"`
	// MinInterval is the minimum gap between two retained stills.
	MinInterval float64 `json:"min_interval"`
	// SampleRate is how many frames per second of source time are analyzed.
	SampleRate float64 `json:"sample_rate"`
	// MinMotionDuration is the shortest motion run surfaced as an Event.
	MinMotionDuration float64 `json:"min_motion_duration"`
	// ClipBefore pads clips before the event start.
	ClipBefore float64 `json:"clip_before"`
	// ClipAfter pads clips after the event end.
	ClipAfter float64 `json:"clip_after"`
	// DrawContours outlines motion regions on every clip frame.
	DrawContours bool `json:"draw_contours"`
}

// DefaultConfig returns the defaults tuned for parked-car and doorbell footage.
func DefaultConfig() Config {
	return Config{
		Sensitivity:       25,
		MinArea:           500,
		MinInterval:       1.0,
		SampleRate:        2,
		MinMotionDuration: 3.0,
		ClipBefore:        20.0,
		ClipAfter:         20.0,
		DrawContours:      true,
	}
}

// Validate checks every field range.
func (c Config) Validate() error {
	switch {
	case c.Sensitivity < 0 || c.Sensitivity > 100:
		return errors.Wrapf(ErrInvalidConfig, "sensitivity %d outside 0-100", c.Sensitivity)
	case c.MinArea < 0:
		return errors.Wrapf(ErrInvalidConfig, "min area %.0f is negative", c.MinArea)
	case c.MinInterval < 0:
		return errors.Wrapf(ErrInvalidConfig, "min interval %.2f is negative", c.MinInterval)
	case c.SampleRate <= 0:
		return errors.Wrapf(ErrInvalidConfig, "sample rate %.2f must be positive", c.SampleRate)
	case c.MinMotionDuration < 0:
		return errors.Wrapf(ErrInvalidConfig, "min motion duration %.2f is negative", c.MinMotionDuration)
	case c.ClipBefore < 0 || c.ClipAfter < 0:
		return errors.Wrapf(ErrInvalidConfig, "clip padding %.2f/%.2f is negative", c.ClipBefore, c.ClipAfter)
	}
	return nil
}
