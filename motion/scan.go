package motion

import (
	"context"
	"io"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motion-extract/images"
	"github.com/nvr-ai/motion-extract/media"
)

// FrameStride returns how many native frames separate two analyzed frames:
// max(1, round(nativeRate / sampleRate)).
func FrameStride(nativeRate, sampleRate float64) int {
	if nativeRate <= 0 || sampleRate <= 0 {
		return 1
	}
	stride := int(math.Round(nativeRate / sampleRate))
	if stride < 1 {
		return 1
	}
	return stride
}

// Timestamp returns the source time of frame index, or 0 when the native
// rate is unknown.
func Timestamp(index int, nativeRate float64) float64 {
	if nativeRate <= 0 {
		return 0
	}
	return float64(index) / nativeRate
}

// Progress is reported once per analyzed frame.
type Progress struct {
	// Timestamp is the source time of the analyzed frame.
	Timestamp float64
	// HasMotion is the motion verdict for the frame.
	HasMotion bool
	// Index is the sequence index of the frame.
	Index int
	// Total is the native frame count of the source.
	Total int
}

// ProgressSink receives per-frame progress. Returning an error interrupts the
// scan; the scan then returns its partial results together with that error.
type ProgressSink interface {
	Report(p Progress) error
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(p Progress) error

// Report implements ProgressSink.
func (f ProgressFunc) Report(p Progress) error { return f(p) }

// Sample is the motion verdict of one analyzed frame.
type Sample struct {
	Index     int
	Timestamp float64
	HasMotion bool
	Regions   []images.Region
}

// scan reads src from its current position (frame 0), analyzes every
// stride-th frame with det and hands each sample to visit.
//
// End of stream ends the scan cleanly. A mid-stream read failure also ends it,
// with a warning; the caller keeps whatever it accumulated. Context
// cancellation is checked between analyzed frames.
func scan(ctx context.Context, src media.FrameSource, det *images.MotionDetector, stride int, log *zap.Logger,
	visit func(s Sample, frame gocv.Mat) error) error {
	rate := src.Info().FPS

	frame := gocv.NewMat()
	defer frame.Close()

	for index := 0; ; index++ {
		if err := src.Read(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Warn("frame read failed, ending scan early",
				zap.Int("frame", index), zap.Error(err))
			return nil
		}
		if index%stride != 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		moving, regions, err := det.Detect(frame)
		if err != nil {
			return errors.Wrapf(err, "detect frame %d", index)
		}

		sample := Sample{
			Index:     index,
			Timestamp: Timestamp(index, rate),
			HasMotion: moving,
			Regions:   regions,
		}
		if err := visit(sample, frame); err != nil {
			return err
		}
	}
}

// rewind positions src at frame 0, reporting failure as a media open error.
func rewind(src media.FrameSource) error {
	if err := src.Seek(0); err != nil {
		if media.IsMediaOpen(err) {
			return err
		}
		return media.Wrapf(media.ErrMediaOpen, err, "position source at frame 0")
	}
	return nil
}

func report(sink ProgressSink, s Sample, total int) error {
	if sink == nil {
		return nil
	}
	return sink.Report(Progress{
		Timestamp: s.Timestamp,
		HasMotion: s.HasMotion,
		Index:     s.Index,
		Total:     total,
	})
}

func nopIfNil(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
