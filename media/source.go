// Package media - Decoded frame sources, sinks and still encoders backed by
// OpenCV (via gocv). The motion pipeline only ever sees these interfaces, so
// container and codec handling stays outside of it.
package media

import (
	"io"

	"gocv.io/x/gocv"
)

// Info describes a decoded frame source.
type Info struct {
	// FPS is the native frame rate. Zero when the container does not report one.
	FPS float64
	// FrameCount is the native frame count as reported by the container.
	FrameCount int
	// Width is the frame width in pixels.
	Width int
	// Height is the frame height in pixels.
	Height int
}

// Duration returns the source length in seconds, or 0 when FPS is unknown.
func (i Info) Duration() float64 {
	if i.FPS <= 0 {
		return 0
	}
	return float64(i.FrameCount) / i.FPS
}

// FrameSource is a seekable, ordered source of decoded BGR frames.
type FrameSource interface {
	// Info returns the native rate, frame count and dimensions.
	Info() Info
	// Read decodes the next frame into dst. It returns io.EOF when the source
	// is exhausted and an ErrMidStreamRead error when decoding fails.
	Read(dst *gocv.Mat) error
	// Seek positions the source so the next Read returns frame index.
	Seek(index int) error
	// Close releases the source.
	Close() error
}

// SourceOpener opens a FrameSource for a media path.
type SourceOpener func(path string) (FrameSource, error)

// VideoFile is a FrameSource reading from a video file through OpenCV.
type VideoFile struct {
	path    string
	capture *gocv.VideoCapture
	info    Info
	pos     int
}

// OpenVideoFile opens path for decoding.
//
// Arguments:
//   - path: The video file to open.
//
// Returns:
//   - FrameSource: The opened source. Close it when done.
//   - error: An ErrMediaOpen error if the file cannot be opened.
func OpenVideoFile(path string) (FrameSource, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, kindf(ErrMediaOpen, err, "open %s", path)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, kindf(ErrMediaOpen, nil, "open %s", path)
	}

	return &VideoFile{
		path:    path,
		capture: capture,
		info: Info{
			FPS:        capture.Get(gocv.VideoCaptureFPS),
			FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
			Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		},
	}, nil
}

// Info implements FrameSource.
func (v *VideoFile) Info() Info {
	return v.info
}

// Read implements FrameSource.
//
// OpenCV does not distinguish end of stream from a decode failure, so a
// failed read before the reported frame count is surfaced as ErrMidStreamRead.
func (v *VideoFile) Read(dst *gocv.Mat) error {
	if ok := v.capture.Read(dst); !ok || dst.Empty() {
		if v.info.FrameCount <= 0 || v.pos >= v.info.FrameCount-1 {
			return io.EOF
		}
		return kindf(ErrMidStreamRead, nil, "read %s at frame %d of %d", v.path, v.pos, v.info.FrameCount)
	}
	v.pos++
	return nil
}

// Seek implements FrameSource.
func (v *VideoFile) Seek(index int) error {
	if index < 0 {
		return kindf(ErrMediaOpen, nil, "seek %s to negative frame %d", v.path, index)
	}
	v.capture.Set(gocv.VideoCapturePosFrames, float64(index))
	v.pos = index
	return nil
}

// Close implements FrameSource.
func (v *VideoFile) Close() error {
	return v.capture.Close()
}
