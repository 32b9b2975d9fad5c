package motion

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motion-extract/images"
	"github.com/nvr-ai/motion-extract/media"
)

// Event is a contiguous run of motion samples lasting at least
// Config.MinMotionDuration.
type Event struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Duration   float64 `json:"duration"`
	StartFrame int     `json:"start_frame"`
	EndFrame   int     `json:"end_frame"`
}

func (e Event) String() string {
	return fmt.Sprintf("MotionEvent(%.1fs-%.1fs, %.1fs)", e.StartTime, e.EndTime, e.Duration)
}

// run tracks the open motion run while segmenting.
type run struct {
	active     bool
	startTime  float64
	startFrame int
	lastTime   float64
}

// Segmenter groups motion samples into Events.
//
// It is a two-state machine over analyzed frames. Idle moves to Active on the
// first motion sample; Active extends on motion and closes on the first still
// sample. A closed run becomes an Event only when lastTime-startTime reaches
// MinMotionDuration. A run still open at end of stream is closed the same way.
type Segmenter struct {
	Config Config
	Logger *zap.Logger
}

// NewSegmenter creates a Segmenter. A nil logger discards output.
func NewSegmenter(cfg Config, log *zap.Logger) *Segmenter {
	return &Segmenter{Config: cfg, Logger: nopIfNil(log)}
}

// Run scans src from frame 0 and returns the qualifying events ordered by
// start time. Partial events are returned alongside an interrupting error.
func (s *Segmenter) Run(ctx context.Context, src media.FrameSource, sink ProgressSink) ([]Event, error) {
	log := nopIfNil(s.Logger)
	if err := rewind(src); err != nil {
		return nil, err
	}

	info := src.Info()
	stride := FrameStride(info.FPS, s.Config.SampleRate)

	det := images.NewMotionDetector(s.Config.Sensitivity, s.Config.MinArea)
	defer det.Close()

	var (
		events  []Event
		current run
	)
	closeRun := func() {
		if !current.active {
			return
		}
		duration := current.lastTime - current.startTime
		if duration >= s.Config.MinMotionDuration {
			event := Event{
				StartTime:  current.startTime,
				EndTime:    current.lastTime,
				Duration:   duration,
				StartFrame: current.startFrame,
				EndFrame:   int(math.Round(current.lastTime * info.FPS)),
			}
			events = append(events, event)
			log.Debug("motion event", zap.Stringer("event", event))
		} else {
			log.Debug("motion run too short",
				zap.Float64("start", current.startTime),
				zap.Float64("duration", duration))
		}
		current = run{}
	}

	err := scan(ctx, src, det, stride, log, func(sample Sample, _ gocv.Mat) error {
		switch {
		case sample.HasMotion && !current.active:
			current = run{
				active:     true,
				startTime:  sample.Timestamp,
				startFrame: sample.Index,
				lastTime:   sample.Timestamp,
			}
		case sample.HasMotion:
			current.lastTime = sample.Timestamp
		default:
			closeRun()
		}
		return report(sink, sample, info.FrameCount)
	})
	closeRun()

	log.Info("segmentation finished",
		zap.Int("stride", stride),
		zap.Int("events", len(events)),
		zap.Error(err))
	return events, err
}
