// Package batch drives the motion passes over one or many videos: it names
// and writes the stills and clips, isolates per-video and per-output
// failures, and reports results in input order.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/motion-extract/images"
	"github.com/nvr-ai/motion-extract/media"
	"github.com/nvr-ai/motion-extract/metrics"
	"github.com/nvr-ai/motion-extract/motion"
	"github.com/nvr-ai/motion-extract/util"
)

// Pass names, used in logs, metrics and progress.
const (
	PassStills = "stills"
	PassEvents = "events"
	PassClips  = "clips"
)

// Config configures a Processor.
type Config struct {
	Motion motion.Config
	// Stills and Clips select the outputs. At least one should be set.
	Stills bool
	Clips  bool
	// Mode is recorded with the run; it does not change behaviour.
	Mode string

	OutputDir   string
	ImageFormat images.ImageFormat
	ClipExt     string
	Workers     int

	OpenSource media.SourceOpener
	CreateSink media.SinkCreator
	Encoder    media.StillEncoder
	// Recorder is optional.
	Recorder Recorder
	// Progress is optional.
	Progress ProgressFactory
}

// Processor runs the configured passes over videos.
type Processor struct {
	// RunID identifies this processor's run in logs and in the Recorder.
	RunID string

	cfg Config
	log *zap.Logger
}

// NewProcessor creates a Processor with a fresh run identifier. Unset
// collaborators default to the OpenCV-backed implementations.
func NewProcessor(cfg Config, log *zap.Logger) *Processor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ImageFormat == "" {
		cfg.ImageFormat = images.FormatJPEG
	}
	if cfg.ClipExt == "" {
		cfg.ClipExt = "mp4"
	}
	if cfg.OpenSource == nil {
		cfg.OpenSource = media.OpenVideoFile
	}
	if cfg.CreateSink == nil {
		cfg.CreateSink = media.NewVideoWriterCreator(media.DefaultClipCodec)
	}
	if cfg.Encoder == nil {
		cfg.Encoder = media.ImageEncoder{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	id := uuid.NewString()
	return &Processor{
		RunID: id,
		cfg:   cfg,
		log:   log.With(zap.String("run_id", id)),
	}
}

// StillPath returns the path of the still taken at seconds of the video whose
// output name is name.
func (p *Processor) StillPath(name string, seconds float64) string {
	file := fmt.Sprintf("%s_%s.%s", name, images.FormatStillTimestamp(seconds), p.cfg.ImageFormat.Extension())
	return filepath.Join(p.cfg.OutputDir, file)
}

// ClipPath returns the path of the clip for the index-th (1-based) event of
// the video whose output name is name.
func (p *Processor) ClipPath(name string, index int, event motion.Event) string {
	file := fmt.Sprintf("%s_clip_%03d_%s.%s", name, index, images.FormatClipTimestamp(event.StartTime), p.cfg.ClipExt)
	return filepath.Join(p.cfg.OutputDir, file)
}

// Run processes every path and returns the summary in input order.
//
// With one worker the videos are processed sequentially; otherwise up to
// Workers videos run at once, each with its own sources and detectors. Videos
// sharing a file name get distinct output names (util.UniqueSourceNames), so
// no two videos write the same output path. Once ctx is done no new video is
// started; the remaining ones are marked Skipped.
func (p *Processor) Run(ctx context.Context, paths []string) Summary {
	start := time.Now()
	summary := Summary{RunID: p.RunID, OutputDir: p.cfg.OutputDir, Videos: len(paths)}

	p.record(func(r Recorder) error {
		return r.StartRun(ctx, Run{
			ID:        p.RunID,
			StartedAt: start,
			OutputDir: p.cfg.OutputDir,
			Mode:      p.cfg.Mode,
			Config:    p.cfg.Motion,
		})
	})

	p.log.Info("batch started", zap.Int("videos", len(paths)), zap.Int("workers", p.cfg.Workers))

	names := util.UniqueSourceNames(paths)
	results := make([]VideoResult, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// A job received after ctx ended is skipped, not started.
				if err := ctx.Err(); err != nil {
					results[i] = skipped(paths[i], names[i], err)
					continue
				}
				results[i] = p.processVideo(ctx, paths[i], names[i])
			}
		}()
	}

	next := 0
	for ; next < len(paths); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- next:
			continue
		case <-ctx.Done():
		}
		break
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(paths); i++ {
		results[i] = skipped(paths[i], names[i], ctx.Err())
	}

	for _, r := range results {
		switch {
		case r.Skipped:
			summary.Skipped++
		case r.Err != nil:
			summary.Failed++
		}
		summary.Stills += len(r.Stills)
		summary.Events += len(r.Events)
		summary.Clips += r.ClipsWritten()
	}
	summary.Results = results
	summary.Elapsed = time.Since(start)

	p.record(func(r Recorder) error { return r.FinishRun(context.WithoutCancel(ctx), p.RunID, summary) })

	p.log.Info("batch finished",
		zap.Int("videos", summary.Videos),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("stills", summary.Stills),
		zap.Int("events", summary.Events),
		zap.Int("clips", summary.Clips),
		zap.String("output", summary.OutputDir),
		zap.Duration("elapsed", summary.Elapsed.Truncate(time.Millisecond)))
	return summary
}

func skipped(path, name string, err error) VideoResult {
	return VideoResult{Path: path, Name: name, Err: err, Skipped: true}
}

// ProcessVideo runs the configured passes over one video, naming its outputs
// after util.SourceName(path). A failure is reported in the result and never
// panics or affects other videos.
func (p *Processor) ProcessVideo(ctx context.Context, path string) VideoResult {
	return p.processVideo(ctx, path, util.SourceName(path))
}

func (p *Processor) processVideo(ctx context.Context, path, name string) VideoResult {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	start := time.Now()
	result := VideoResult{Path: path, Name: name}
	log := p.log.With(zap.String("video", path), zap.String("name", name))
	log.Info("video started")

	result.Err = p.process(ctx, path, &result, log)
	result.Elapsed = time.Since(start)

	status := metrics.StatusOK
	if result.Err != nil {
		status = metrics.StatusFailed
		log.Error("video failed",
			zap.Error(result.Err),
			zap.Int("stills", len(result.Stills)),
			zap.Int("clips", result.ClipsWritten()))
	} else {
		log.Info("video finished",
			zap.Int("stills", len(result.Stills)),
			zap.Int("events", len(result.Events)),
			zap.Int("clips", result.ClipsWritten()),
			zap.Duration("elapsed", result.Elapsed.Truncate(time.Millisecond)))
	}
	metrics.VideosProcessedTotal.WithLabelValues(status).Inc()

	p.record(func(r Recorder) error { return r.RecordVideo(context.WithoutCancel(ctx), p.RunID, result) })
	return result
}

func (p *Processor) process(ctx context.Context, path string, result *VideoResult, log *zap.Logger) error {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return media.Wrapf(media.ErrOutputCreate, err, "create output directory %s", p.cfg.OutputDir)
	}

	if p.cfg.Stills {
		if err := p.stillsPass(ctx, path, result, log); err != nil {
			return err
		}
	}
	if p.cfg.Clips {
		if err := p.clipsPass(ctx, path, result, log); err != nil {
			return err
		}
	}
	return nil
}

// stillsPass samples the video and writes each still as soon as it is
// retained, so stills taken before an interruption are already on disk.
func (p *Processor) stillsPass(ctx context.Context, path string, result *VideoResult, log *zap.Logger) error {
	defer observeStage(PassStills, time.Now())

	src, err := p.cfg.OpenSource(path)
	if err != nil {
		return err
	}
	defer src.Close()
	result.Info = src.Info()

	sink, finish := p.progressSink(path, PassStills)
	defer finish()

	_, err = motion.NewSampler(p.cfg.Motion, log).Stream(ctx, src, sink, func(still motion.Still) error {
		defer still.Close()
		p.writeStill(still, result, log)
		return nil
	})
	return err
}

// writeStill encodes one still. A failed write is logged and skipped.
func (p *Processor) writeStill(still motion.Still, result *VideoResult, log *zap.Logger) {
	out := p.StillPath(result.Name, still.Timestamp)
	if err := p.cfg.Encoder.Encode(still.Frame, out); err != nil {
		metrics.StillsWrittenTotal.WithLabelValues(metrics.StatusFailed).Inc()
		log.Warn("still not written", zap.String("still", out), zap.Error(err))
		return
	}
	metrics.StillsWrittenTotal.WithLabelValues(metrics.StatusOK).Inc()
	result.Stills = append(result.Stills, StillOutput{
		Path:       out,
		Timestamp:  still.Timestamp,
		FrameIndex: still.Index,
		Regions:    len(still.Regions),
	})
}

// clipsPass segments the video into events and writes one clip per event,
// in event order. A failed clip is logged and the next event is tried.
func (p *Processor) clipsPass(ctx context.Context, path string, result *VideoResult, log *zap.Logger) error {
	events, err := p.segment(ctx, path, result, log)
	result.Events = events
	metrics.EventsDetectedTotal.Add(float64(len(events)))
	if err != nil {
		return err
	}

	defer observeStage(PassClips, time.Now())

	extractor := &motion.ClipExtractor{
		Config:     p.cfg.Motion,
		OpenSource: p.cfg.OpenSource,
		CreateSink: p.cfg.CreateSink,
		Logger:     log,
	}
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}

		out := p.ClipPath(result.Name, i+1, event)
		clip, err := extractor.Extract(ctx, path, out, event)
		result.Clips = append(result.Clips, ClipOutput{
			Path:          out,
			EventIndex:    i + 1,
			Event:         event,
			Window:        clip.Window,
			FramesWritten: clip.FramesWritten,
			Err:           err,
		})
		metrics.ClipFramesWrittenTotal.Add(float64(clip.FramesWritten))

		if err != nil {
			metrics.ClipsWrittenTotal.WithLabelValues(metrics.StatusFailed).Inc()
			if ctx.Err() != nil {
				return err
			}
			log.Warn("clip not written", zap.String("clip", out), zap.Stringer("event", event), zap.Error(err))
			continue
		}
		metrics.ClipsWrittenTotal.WithLabelValues(metrics.StatusOK).Inc()
	}
	return nil
}

func (p *Processor) segment(ctx context.Context, path string, result *VideoResult, log *zap.Logger) ([]motion.Event, error) {
	defer observeStage(PassEvents, time.Now())

	src, err := p.cfg.OpenSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	result.Info = src.Info()

	sink, finish := p.progressSink(path, PassEvents)
	defer finish()

	events, err := motion.NewSegmenter(p.cfg.Motion, log).Run(ctx, src, sink)
	if err != nil {
		return events, errors.Wrap(err, "segment motion events")
	}
	return events, nil
}

type finisher interface {
	Finish()
}

// progressSink counts analyzed frames in metrics and forwards to the
// configured progress sink, if any.
func (p *Processor) progressSink(video, pass string) (motion.ProgressSink, func()) {
	var next motion.ProgressSink
	if p.cfg.Progress != nil {
		next = p.cfg.Progress(video, pass)
	}
	analyzed := metrics.FramesAnalyzedTotal.WithLabelValues(pass)

	sink := motion.ProgressFunc(func(pr motion.Progress) error {
		analyzed.Inc()
		if pr.HasMotion {
			metrics.MotionFramesTotal.Inc()
		}
		if next != nil {
			return next.Report(pr)
		}
		return nil
	})
	finish := func() {
		if f, ok := next.(finisher); ok {
			f.Finish()
		}
	}
	return sink, finish
}

func (p *Processor) record(fn func(r Recorder) error) {
	if p.cfg.Recorder == nil {
		return
	}
	if err := fn(p.cfg.Recorder); err != nil {
		p.log.Warn("recorder failed", zap.Error(err))
	}
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
