package media

import (
	"image"
	"image/color"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// ShapeFunc returns the rectangle to draw on frame index, or false for none.
type ShapeFunc func(index int) (image.Rectangle, bool)

// SyntheticSource is a deterministic in-memory FrameSource. Every frame is a
// flat background with an optional filled rectangle, so motion can be placed
// at exact frame indices.
//
// @example
// src := &media.SyntheticSource{
//     Width: 320, Height: 240, FPS: 30, Frames: 300,
//     Shape: media.MovingSquare(90, 210, 60, 3),
// }
type SyntheticSource struct {
	Width, Height int
	FPS           float64
	Frames        int
	// Background is the frame fill; the zero value is black.
	Background color.RGBA
	// Foreground is the shape fill; the zero value is white.
	Foreground color.RGBA
	// Shape places the rectangle per frame. Nil draws nothing.
	Shape ShapeFunc
	// FailAt makes Read return ErrMidStreamRead at this index when > 0.
	FailAt int
	// OpenErr, when set, is returned by Opener instead of the source.
	OpenErr error

	pos    int
	closed bool
}

// Info implements FrameSource.
func (s *SyntheticSource) Info() Info {
	return Info{FPS: s.FPS, FrameCount: s.Frames, Width: s.Width, Height: s.Height}
}

// Render draws frame index into a new BGR Mat. The caller owns the result.
func (s *SyntheticSource) Render(index int) gocv.Mat {
	bg := s.Background
	frame := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(bg.B), float64(bg.G), float64(bg.R), 0),
		s.Height, s.Width, gocv.MatTypeCV8UC3)

	if s.Shape != nil {
		if rect, ok := s.Shape(index); ok {
			fg := s.Foreground
			if fg == (color.RGBA{}) {
				fg = color.RGBA{255, 255, 255, 0}
			}
			gocv.Rectangle(&frame, rect, fg, -1)
		}
	}
	return frame
}

// Read implements FrameSource.
func (s *SyntheticSource) Read(dst *gocv.Mat) error {
	if s.pos >= s.Frames {
		return io.EOF
	}
	if s.FailAt > 0 && s.pos == s.FailAt {
		return kindf(ErrMidStreamRead, nil, "synthetic read at frame %d", s.pos)
	}
	frame := s.Render(s.pos)
	defer frame.Close()
	frame.CopyTo(dst)
	s.pos++
	return nil
}

// Seek implements FrameSource.
func (s *SyntheticSource) Seek(index int) error {
	if index < 0 {
		return kindf(ErrMediaOpen, nil, "seek to negative frame %d", index)
	}
	s.pos = index
	return nil
}

// Close implements FrameSource.
func (s *SyntheticSource) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SyntheticSource) Closed() bool {
	return s.closed
}

// Opener returns a SourceOpener that yields a fresh copy of s for every call,
// so each pass starts at frame 0 with its own position.
func (s *SyntheticSource) Opener() SourceOpener {
	return func(path string) (FrameSource, error) {
		if s.OpenErr != nil {
			return nil, kindf(ErrMediaOpen, s.OpenErr, "open %s", path)
		}
		clone := *s
		clone.pos = 0
		clone.closed = false
		return &clone, nil
	}
}

// MovingSquare returns a ShapeFunc drawing a size x size square on frames
// [from, to), starting at (20, 20) and moving step pixels right per frame.
func MovingSquare(from, to, size, step int) ShapeFunc {
	return func(index int) (image.Rectangle, bool) {
		if index < from || index >= to {
			return image.Rectangle{}, false
		}
		x := 20 + (index-from)*step
		return image.Rect(x, 20, x+size, 20+size), true
	}
}

// MemorySink is a FrameSink that keeps clones of every written frame.
type MemorySink struct {
	Path   string
	FPS    float64
	Width  int
	Height int
	Frames []gocv.Mat
	closed bool
}

// Write implements FrameSink.
func (m *MemorySink) Write(frame gocv.Mat) error {
	m.Frames = append(m.Frames, frame.Clone())
	return nil
}

// Close implements FrameSink. Frames stay readable until Release.
func (m *MemorySink) Close() error {
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemorySink) Closed() bool {
	return m.closed
}

// Release frees the retained frames.
func (m *MemorySink) Release() {
	for i := range m.Frames {
		m.Frames[i].Close()
	}
	m.Frames = nil
}

// MemorySinkCreator records every sink it creates. Paths listed in Fail are
// refused with ErrOutputCreate.
type MemorySinkCreator struct {
	Sinks []*MemorySink
	Fail  map[string]bool

	mu sync.Mutex
}

// Create is a SinkCreator.
func (c *MemorySinkCreator) Create(path string, fps float64, width, height int) (FrameSink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail[path] {
		return nil, kindf(ErrOutputCreate, nil, "create %s", path)
	}
	sink := &MemorySink{Path: path, FPS: fps, Width: width, Height: height}
	c.Sinks = append(c.Sinks, sink)
	return sink, nil
}

// Release frees the frames of every created sink.
func (c *MemorySinkCreator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.Sinks {
		s.Release()
	}
}
