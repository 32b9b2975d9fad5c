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

// ClipWindow is the padded span written for one Event. EndTime is not
// clamped to the source duration; writing simply stops at end of stream.
type ClipWindow struct {
	StartTime  float64
	EndTime    float64
	StartFrame int
	EndFrame   int
}

// Duration is the padded window length in seconds.
func (w ClipWindow) Duration() float64 {
	return w.EndTime - w.StartTime
}

// WindowFor pads event by before and after seconds. The start is clamped at 0
// and both frame bounds are floor(time * rate).
func WindowFor(event Event, before, after, rate float64) ClipWindow {
	start := math.Max(0, event.StartTime-before)
	end := event.EndTime + after
	w := ClipWindow{StartTime: start, EndTime: end}
	if rate > 0 {
		w.StartFrame = int(math.Floor(start * rate))
		w.EndFrame = int(math.Floor(end * rate))
	}
	return w
}

// ClipResult describes one written clip.
type ClipResult struct {
	Window        ClipWindow
	FramesWritten int
}

// ClipExtractor writes the padded window around an Event to a new video.
//
// Each extraction opens its own source handle and its own detector, so the
// first frame of a clip never carries regions. Every written frame carries the
// clock overlay; with Config.DrawContours, frames with motion also carry the
// region outlines.
type ClipExtractor struct {
	Config     Config
	OpenSource media.SourceOpener
	CreateSink media.SinkCreator
	Logger     *zap.Logger
}

// NewClipExtractor returns an extractor that reads video files and writes
// through create.
func NewClipExtractor(cfg Config, create media.SinkCreator, log *zap.Logger) *ClipExtractor {
	return &ClipExtractor{
		Config:     cfg,
		OpenSource: media.OpenVideoFile,
		CreateSink: create,
		Logger:     nopIfNil(log),
	}
}

// Extract writes the clip for event from sourcePath to outputPath.
//
// Arguments:
//   - ctx: Cancels between frames; the partially written clip is finalized.
//   - sourcePath: The source video.
//   - outputPath: The clip destination.
//   - event: The event to pad and extract.
//
// Returns:
//   - ClipResult: The window and number of frames written.
//   - error: ErrMediaOpen, ErrOutputCreate, or the interrupting ctx error.
func (c *ClipExtractor) Extract(ctx context.Context, sourcePath, outputPath string, event Event) (ClipResult, error) {
	log := nopIfNil(c.Logger).With(zap.String("clip", outputPath))

	src, err := c.OpenSource(sourcePath)
	if err != nil {
		return ClipResult{}, err
	}
	defer src.Close()

	info := src.Info()
	result := ClipResult{Window: WindowFor(event, c.Config.ClipBefore, c.Config.ClipAfter, info.FPS)}

	sink, err := c.CreateSink(outputPath, info.FPS, info.Width, info.Height)
	if err != nil {
		return result, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			log.Warn("finalize clip", zap.Error(cerr))
		}
	}()

	if err := src.Seek(result.Window.StartFrame); err != nil {
		return result, media.Wrapf(media.ErrMediaOpen, err, "seek %s to frame %d", sourcePath, result.Window.StartFrame)
	}

	det := images.NewMotionDetector(c.Config.Sensitivity, c.Config.MinArea)
	defer det.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for index := result.Window.StartFrame; index <= result.Window.EndFrame; index++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := src.Read(&frame); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("frame read failed, ending clip early", zap.Int("frame", index), zap.Error(err))
			}
			break
		}

		if c.Config.DrawContours {
			moving, regions, err := det.Detect(frame)
			if err != nil {
				return result, errors.Wrapf(err, "detect frame %d", index)
			}
			if moving {
				images.DrawRegions(&frame, regions)
			}
		}
		images.DrawTimestamp(&frame, Timestamp(index, info.FPS))

		if err := sink.Write(frame); err != nil {
			return result, err
		}
		result.FramesWritten++
	}

	log.Info("clip written",
		zap.Stringer("event", event),
		zap.Float64("start", result.Window.StartTime),
		zap.Float64("end", result.Window.EndTime),
		zap.Float64("window", result.Window.Duration()),
		zap.Int("frames", result.FramesWritten))
	return result, nil
}
