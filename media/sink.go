package media

import (
	"gocv.io/x/gocv"
)

// DefaultClipCodec is the FourCC used for clip output.
const DefaultClipCodec = "mp4v"

// FrameSink accepts frames for sequential append and finalizes on Close.
type FrameSink interface {
	Write(frame gocv.Mat) error
	Close() error
}

// SinkCreator creates a FrameSink at path with the given rate and
// dimensions. Creation failures are reported synchronously as ErrOutputCreate.
type SinkCreator func(path string, fps float64, width, height int) (FrameSink, error)

// VideoWriter is a FrameSink writing an encoded video file through OpenCV.
type VideoWriter struct {
	path   string
	writer *gocv.VideoWriter
}

// NewVideoWriterCreator returns a SinkCreator that encodes with codec.
//
// Arguments:
//   - codec: FourCC code, e.g. "mp4v" or "MJPG". Empty selects DefaultClipCodec.
//
// Returns:
//   - SinkCreator: A creator producing VideoWriter sinks.
func NewVideoWriterCreator(codec string) SinkCreator {
	if codec == "" {
		codec = DefaultClipCodec
	}
	return func(path string, fps float64, width, height int) (FrameSink, error) {
		if fps <= 0 || width <= 0 || height <= 0 {
			return nil, kindf(ErrOutputCreate, nil, "create %s: invalid geometry %dx%d@%.2f", path, width, height, fps)
		}
		writer, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
		if err != nil {
			return nil, kindf(ErrOutputCreate, err, "create %s", path)
		}
		if !writer.IsOpened() {
			writer.Close()
			return nil, kindf(ErrOutputCreate, nil, "create %s", path)
		}
		return &VideoWriter{path: path, writer: writer}, nil
	}
}

// Write implements FrameSink.
func (w *VideoWriter) Write(frame gocv.Mat) error {
	if err := w.writer.Write(frame); err != nil {
		return kindf(ErrOutputCreate, err, "write %s", w.path)
	}
	return nil
}

// Close implements FrameSink.
func (w *VideoWriter) Close() error {
	return w.writer.Close()
}
