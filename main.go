package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/motion-extract/batch"
	"github.com/nvr-ai/motion-extract/catalog"
	"github.com/nvr-ai/motion-extract/config"
	"github.com/nvr-ai/motion-extract/images"
	"github.com/nvr-ai/motion-extract/logger"
	"github.com/nvr-ai/motion-extract/media"
	"github.com/nvr-ai/motion-extract/metrics"
	"github.com/nvr-ai/motion-extract/motion"
	"github.com/nvr-ai/motion-extract/progress"
	"github.com/nvr-ai/motion-extract/util"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "motion-extract: %v\n", err)
		return 2
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "motion-extract: %v\n", err)
		return 2
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	videos, err := util.FindVideoFiles(cfg.Input)
	if err != nil {
		log.Error("find videos", zap.String("input", cfg.Input), zap.Error(err))
		return 1
	}
	if len(videos) == 0 {
		log.Warn("no video files found", zap.String("input", cfg.Input))
		return 0
	}

	if cfg.MetricsAddr != "" {
		metrics.StartServer(ctx, cfg.MetricsAddr, log)
	}

	var recorder batch.Recorder
	if cfg.Catalog != "" {
		store, err := catalog.Open(cfg.Catalog)
		if err != nil {
			log.Error("open catalog", zap.String("catalog", cfg.Catalog), zap.Error(err))
			return 1
		}
		defer store.Close()
		recorder = store
	}

	processor := batch.NewProcessor(batch.Config{
		Motion:      cfg.Motion(),
		Stills:      cfg.WantStills(),
		Clips:       cfg.WantClips(),
		Mode:        cfg.Mode,
		OutputDir:   cfg.Output,
		ImageFormat: images.ImageFormat(cfg.Format),
		ClipExt:     cfg.ClipExt,
		Workers:     cfg.Workers,
		OpenSource:  media.OpenVideoFile,
		CreateSink:  media.NewVideoWriterCreator(cfg.ClipCodec),
		Encoder:     media.ImageEncoder{Quality: cfg.JPEGQuality, MaxWidth: cfg.StillMaxWidth},
		Recorder:    recorder,
		Progress: func(video, pass string) motion.ProgressSink {
			return progress.NewReporter(progress.Options{Video: video, Pass: pass}, log)
		},
	}, log)

	log.Info("motion extraction starting",
		zap.String("run_id", processor.RunID),
		zap.Int("videos", len(videos)),
		zap.String("mode", cfg.Mode),
		zap.String("preset", cfg.Preset),
		zap.Int("sensitivity", cfg.Sensitivity),
		zap.Float64("min_area", cfg.MinArea),
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.String("output", cfg.Output))

	summary := processor.Run(ctx, videos)
	printSummary(summary)

	if ctx.Err() != nil {
		log.Warn("interrupted", zap.Int("skipped", summary.Skipped))
		return 130
	}
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func printSummary(s batch.Summary) {
	fmt.Printf("Processed %d video(s) in %s\n", s.Videos-s.Skipped, s.Elapsed.Round(10*time.Millisecond))
	for _, r := range s.Results {
		switch {
		case r.Skipped:
			fmt.Printf("  %s: skipped\n", r.Path)
		case r.Err != nil:
			fmt.Printf("  %s: FAILED: %v\n", r.Path, r.Err)
		default:
			fmt.Printf("  %s: %d still(s), %d event(s), %d clip(s)\n", r.Path, len(r.Stills), len(r.Events), r.ClipsWritten())
		}
	}
	fmt.Printf("Stills: %d  Events: %d  Clips: %d  Failed: %d\n", s.Stills, s.Events, s.Clips, s.Failed)
	fmt.Printf("Output: %s\n", s.OutputDir)
}
