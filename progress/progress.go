// Package progress - Throughput and ETA reporting for frame scans.
package progress

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/motion-extract/motion"
)

// DefaultInterval is how often a Reporter logs when no interval is set.
const DefaultInterval = 2 * time.Second

// Options configures a Reporter.
type Options struct {
	// Video names the source in every log line.
	Video string
	// Pass names the scan ("stills" or "events").
	Pass string
	// Interval is the minimum time between two progress lines (default: 2s).
	Interval time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Reporter is a motion.ProgressSink that logs percent complete, processing
// speed in source frames per second and the estimated time remaining.
//
// Speed and ETA are computed over source frames, not analyzed frames, since
// skipped frames still cost a decode.
type Reporter struct {
	opts Options
	log  *zap.Logger

	mu        sync.Mutex
	start     time.Time
	lastLog   time.Time
	processed int
	total     int
	motion    int
	last      motion.Progress
}

// NewReporter creates a Reporter. The clock starts at the first Report.
func NewReporter(opts Options, log *zap.Logger) *Reporter {
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{opts: opts, log: log}
}

// Report implements motion.ProgressSink. It never interrupts the scan.
func (r *Reporter) Report(p motion.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Now()
	if r.start.IsZero() {
		r.start = now
		r.lastLog = now
	}

	r.processed = p.Index + 1
	r.total = p.Total
	r.last = p
	if p.HasMotion {
		r.motion++
	}

	if now.Sub(r.lastLog) < r.opts.Interval {
		return nil
	}
	r.lastLog = now

	snap := r.snapshot(now)
	r.log.Info("scan progress",
		zap.String("video", r.opts.Video),
		zap.String("pass", r.opts.Pass),
		zap.Float64("percent", snap.Percent),
		zap.Float64("speed", snap.Speed),
		zap.Duration("eta", snap.ETA),
		zap.String("position", FormatPosition(p.Timestamp)),
		zap.Bool("motion", p.HasMotion))
	return nil
}

// Snapshot is the computed progress at one moment.
type Snapshot struct {
	// Processed is the number of source frames consumed so far.
	Processed int
	// Total is the native frame count; zero when unknown.
	Total int
	// Percent is Processed/Total*100, capped at 100.
	Percent float64
	// Speed is source frames consumed per wall-clock second.
	Speed float64
	// ETA is the estimated remaining wall-clock time.
	ETA time.Duration
	// Elapsed is the wall-clock time since the first Report.
	Elapsed time.Duration
	// MotionSamples counts analyzed frames with motion.
	MotionSamples int
}

// Snapshot returns the current progress.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(r.opts.Now())
}

func (r *Reporter) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Processed:     r.processed,
		Total:         r.total,
		MotionSamples: r.motion,
	}
	if !r.start.IsZero() {
		s.Elapsed = now.Sub(r.start)
	}
	if r.total > 0 {
		s.Percent = float64(r.processed) / float64(r.total) * 100
		if s.Percent > 100 {
			s.Percent = 100
		}
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Speed = float64(r.processed) / secs
	}
	if s.Speed > 0 && r.total > r.processed {
		s.ETA = time.Duration(float64(r.total-r.processed) / s.Speed * float64(time.Second))
	}
	return s
}

// Finish logs the final summary of the scan.
func (r *Reporter) Finish() {
	snap := r.Snapshot()
	r.log.Info("scan finished",
		zap.String("video", r.opts.Video),
		zap.String("pass", r.opts.Pass),
		zap.Int("frames", snap.Processed),
		zap.Int("motion_samples", snap.MotionSamples),
		zap.Duration("elapsed", snap.Elapsed.Truncate(time.Millisecond)),
		zap.Float64("speed", snap.Speed))
}

// FormatPosition renders seconds of source time as MM:SS.
func FormatPosition(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
