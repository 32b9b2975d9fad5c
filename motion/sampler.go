package motion

import (
	"context"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motion-extract/images"
	"github.com/nvr-ai/motion-extract/media"
)

// Still is a retained motion frame, annotated with its surviving regions and
// a clock overlay. The Still owns Frame; call Close to release it.
type Still struct {
	Frame     gocv.Mat
	Timestamp float64
	Index     int
	Regions   []images.Region
}

// Close releases the annotated frame.
func (s *Still) Close() {
	s.Frame.Close()
}

// CloseStills releases every still in the slice.
func CloseStills(stills []Still) {
	for i := range stills {
		stills[i].Close()
	}
}

// Sampler analyzes a source at Config.SampleRate and keeps annotated stills
// of motion moments, at most one per Config.MinInterval of source time.
type Sampler struct {
	Config Config
	Logger *zap.Logger
}

// NewSampler creates a Sampler. A nil logger discards output.
func NewSampler(cfg Config, log *zap.Logger) *Sampler {
	return &Sampler{Config: cfg, Logger: nopIfNil(log)}
}

// Run scans src from frame 0 and returns the retained stills in timestamp
// order.
//
// Arguments:
//   - ctx: Cancels the scan between analyzed frames.
//   - src: The frame source; it is rewound to frame 0 and left open.
//   - sink: Optional progress receiver; an error from it stops the scan.
//
// Returns:
//   - []Still: Stills gathered so far, also when err is non-nil.
//   - error: ErrMediaOpen when src cannot be positioned, or the
//     cancellation/sink error that interrupted the scan.
func (s *Sampler) Run(ctx context.Context, src media.FrameSource, sink ProgressSink) ([]Still, error) {
	var stills []Still
	_, err := s.Stream(ctx, src, sink, func(still Still) error {
		stills = append(stills, still)
		return nil
	})
	return stills, err
}

// StillFunc receives each still as it is retained and owns its Frame.
type StillFunc func(Still) error

// Stream scans like Run but hands every retained still to emit as soon as it
// is taken instead of buffering them, so only one annotated frame is alive at
// a time when emit releases it. An error from emit stops the scan and is
// returned. Stream returns the number of stills emitted.
func (s *Sampler) Stream(ctx context.Context, src media.FrameSource, sink ProgressSink, emit StillFunc) (int, error) {
	log := nopIfNil(s.Logger)
	if err := rewind(src); err != nil {
		return 0, err
	}

	info := src.Info()
	stride := FrameStride(info.FPS, s.Config.SampleRate)

	det := images.NewMotionDetector(s.Config.Sensitivity, s.Config.MinArea)
	defer det.Close()

	// Seeded so that a motion frame at t=0 is retained.
	lastKept := -s.Config.MinInterval

	kept := 0
	err := scan(ctx, src, det, stride, log, func(sample Sample, frame gocv.Mat) error {
		if sample.HasMotion && sample.Timestamp-lastKept >= s.Config.MinInterval {
			lastKept = sample.Timestamp
			kept++
			log.Debug("still retained",
				zap.Int("frame", sample.Index),
				zap.Float64("timestamp", sample.Timestamp),
				zap.Int("regions", len(sample.Regions)))
			if err := emit(Still{
				Frame:     images.Annotate(frame, sample.Regions, sample.Timestamp),
				Timestamp: sample.Timestamp,
				Index:     sample.Index,
				Regions:   sample.Regions,
			}); err != nil {
				return err
			}
		}
		return report(sink, sample, info.FrameCount)
	})

	log.Info("sampling finished",
		zap.Int("stride", stride),
		zap.Int("stills", kept),
		zap.Error(err))
	return kept, err
}
