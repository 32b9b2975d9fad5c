package batch

import (
	"context"
	"time"

	"github.com/nvr-ai/motion-extract/media"
	"github.com/nvr-ai/motion-extract/motion"
)

// Run describes one batch invocation.
type Run struct {
	ID        string
	StartedAt time.Time
	OutputDir string
	Mode      string
	Config    motion.Config
}

// StillOutput is one still image written for a video.
type StillOutput struct {
	Path       string
	Timestamp  float64
	FrameIndex int
	Regions    int
}

// ClipOutput is one clip attempted for a motion event. Err is set when the
// clip could not be written; FramesWritten may still be non-zero if the
// extraction was interrupted.
type ClipOutput struct {
	Path          string
	EventIndex    int
	Event         motion.Event
	Window        motion.ClipWindow
	FramesWritten int
	Err           error
}

// VideoResult is the outcome of processing one video. Err holds the failure
// that ended processing early, if any; whatever was produced before it is
// still listed.
type VideoResult struct {
	Path    string
	Name    string
	Info    media.Info
	Stills  []StillOutput
	Events  []motion.Event
	Clips   []ClipOutput
	Elapsed time.Duration
	Err     error
	// Skipped is set for videos never started because the run was cancelled.
	Skipped bool
}

// ClipsWritten counts the clips that were written without error.
func (r VideoResult) ClipsWritten() int {
	n := 0
	for _, c := range r.Clips {
		if c.Err == nil {
			n++
		}
	}
	return n
}

// Summary aggregates a batch run. Results are in input order.
type Summary struct {
	RunID     string
	OutputDir string
	Videos    int
	Failed    int
	Skipped   int
	Stills    int
	Events    int
	Clips     int
	Elapsed   time.Duration
	Results   []VideoResult
}

// Recorder persists batch outcomes. Implementations must be safe for
// concurrent use when the Processor runs more than one worker.
type Recorder interface {
	StartRun(ctx context.Context, run Run) error
	RecordVideo(ctx context.Context, runID string, result VideoResult) error
	FinishRun(ctx context.Context, runID string, summary Summary) error
}

// ProgressFactory returns the progress sink for one pass over one video.
// If the returned sink has a Finish method it is called when the pass ends.
type ProgressFactory func(video, pass string) motion.ProgressSink
