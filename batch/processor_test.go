package batch

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/motion-extract/media"
	"github.com/nvr-ai/motion-extract/motion"
)

type memEncoder struct {
	mu      sync.Mutex
	written []string
	fail    map[string]bool
}

func (e *memEncoder) Encode(frame gocv.Mat, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if frame.Empty() {
		return errors.New("empty frame")
	}
	if e.fail[filepath.Base(path)] {
		return media.Wrapf(media.ErrOutputCreate, nil, "write %s", path)
	}
	e.written = append(e.written, filepath.Base(path))
	return nil
}

type memRecorder struct {
	mu       sync.Mutex
	runs     []Run
	videos   []VideoResult
	finished []Summary
}

func (r *memRecorder) StartRun(_ context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

func (r *memRecorder) RecordVideo(_ context.Context, _ string, result VideoResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos = append(r.videos, result)
	return nil
}

func (r *memRecorder) FinishRun(_ context.Context, _ string, summary Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, summary)
	return nil
}

type countingSink struct {
	mu       sync.Mutex
	reports  int
	finished bool
}

func (s *countingSink) Report(motion.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports++
	return nil
}

func (s *countingSink) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

func footage(shape media.ShapeFunc) *media.SyntheticSource {
	return &media.SyntheticSource{Width: 640, Height: 360, FPS: 30, Frames: 300, Shape: shape}
}

// twoRuns has motion from 1.0s to 3.0s and from 5.0s to 8.0s.
func twoRuns() media.ShapeFunc {
	first := media.MovingSquare(30, 90, 60, 3)
	second := media.MovingSquare(150, 240, 60, 3)
	return func(index int) (image.Rectangle, bool) {
		if rect, ok := first(index); ok {
			return rect, ok
		}
		return second(index)
	}
}

// library opens synthetic footage by path; unknown paths fail to open.
func library(sources map[string]*media.SyntheticSource) media.SourceOpener {
	return func(path string) (media.FrameSource, error) {
		src, ok := sources[path]
		if !ok {
			return nil, media.Wrapf(media.ErrMediaOpen, nil, "open %s", path)
		}
		return src.Opener()(path)
	}
}

type fixture struct {
	cfg      Config
	sinks    *media.MemorySinkCreator
	encoder  *memEncoder
	recorder *memRecorder
}

func newFixture(t *testing.T, sources map[string]*media.SyntheticSource) *fixture {
	mcfg := motion.DefaultConfig()
	mcfg.ClipBefore = 1
	mcfg.ClipAfter = 1
	mcfg.MinMotionDuration = 1

	f := &fixture{
		sinks:    &media.MemorySinkCreator{Fail: map[string]bool{}},
		encoder:  &memEncoder{fail: map[string]bool{}},
		recorder: &memRecorder{},
	}
	t.Cleanup(f.sinks.Release)

	f.cfg = Config{
		Motion:      mcfg,
		Stills:      true,
		Clips:       true,
		Mode:        "all",
		OutputDir:   t.TempDir(),
		ImageFormat: "jpg",
		ClipExt:     "mp4",
		OpenSource:  library(sources),
		CreateSink:  f.sinks.Create,
		Encoder:     f.encoder,
		Recorder:    f.recorder,
	}
	return f
}

func TestProcessor_Paths(t *testing.T) {
	p := NewProcessor(Config{OutputDir: "/out", ImageFormat: "png", ClipExt: "avi"}, nil)

	assert.Equal(t, filepath.Join("/out", "driveway_00h05m30s.png"), p.StillPath("driveway", 330.4))
	assert.Equal(t, filepath.Join("/out", "driveway_clip_007_010203.avi"),
		p.ClipPath("driveway", 7, motion.Event{StartTime: 3723}))
	assert.NotEmpty(t, p.RunID)
}

func TestProcessVideo_StillsAndClips(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"/cams/cam.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	p := NewProcessor(f.cfg, nil)

	result := p.ProcessVideo(context.Background(), "/cams/cam.mp4")
	require.NoError(t, result.Err)

	assert.Equal(t, "cam", result.Name)
	assert.Equal(t, 300, result.Info.FrameCount)
	assert.Equal(t, []string{
		"cam_00h00m03s.jpg",
		"cam_00h00m04s.jpg",
		"cam_00h00m05s.jpg",
		"cam_00h00m06s.jpg",
		"cam_00h00m07s.jpg",
	}, f.encoder.written)
	require.Len(t, result.Stills, 5)
	assert.Equal(t, 90, result.Stills[0].FrameIndex)

	require.Len(t, result.Events, 1)
	assert.Equal(t, "MotionEvent(3.0s-7.0s, 4.0s)", result.Events[0].String())

	require.Len(t, result.Clips, 1)
	clip := result.Clips[0]
	require.NoError(t, clip.Err)
	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "cam_clip_001_000003.mp4"), clip.Path)
	assert.Equal(t, 181, clip.FramesWritten)
	assert.Equal(t, 1, result.ClipsWritten())

	require.Len(t, f.recorder.videos, 1)
	assert.Equal(t, "/cams/cam.mp4", f.recorder.videos[0].Path)
}

func TestProcessVideo_StillsOnly(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"cam.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	f.cfg.Clips = false

	result := NewProcessor(f.cfg, nil).ProcessVideo(context.Background(), "cam.mp4")
	require.NoError(t, result.Err)
	assert.Len(t, result.Stills, 5)
	assert.Empty(t, result.Events)
	assert.Empty(t, f.sinks.Sinks)
}

func TestProcessVideo_OpenFailure(t *testing.T) {
	f := newFixture(t, nil)

	result := NewProcessor(f.cfg, nil).ProcessVideo(context.Background(), "gone.mp4")
	assert.True(t, media.IsMediaOpen(result.Err))
	assert.Empty(t, result.Stills)
	assert.Empty(t, result.Clips)
	require.Len(t, f.recorder.videos, 1)
}

func TestProcessVideo_StillFailureSkipsOnlyThatStill(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"cam.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	f.cfg.Clips = false
	f.encoder.fail["cam_00h00m05s.jpg"] = true

	result := NewProcessor(f.cfg, nil).ProcessVideo(context.Background(), "cam.mp4")
	require.NoError(t, result.Err)
	assert.Len(t, result.Stills, 4)
	assert.NotContains(t, f.encoder.written, "cam_00h00m05s.jpg")
}

func TestProcessVideo_ClipFailureSkipsOnlyThatEvent(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"cam.mp4": footage(twoRuns()),
	})
	f.cfg.Stills = false
	first := filepath.Join(f.cfg.OutputDir, "cam_clip_001_000001.mp4")
	f.sinks.Fail[first] = true

	result := NewProcessor(f.cfg, nil).ProcessVideo(context.Background(), "cam.mp4")
	require.NoError(t, result.Err)
	require.Len(t, result.Events, 2)
	require.Len(t, result.Clips, 2)

	assert.True(t, media.IsOutputCreate(result.Clips[0].Err))
	assert.NoError(t, result.Clips[1].Err)
	assert.Equal(t, filepath.Join(f.cfg.OutputDir, "cam_clip_002_000005.mp4"), result.Clips[1].Path)
	assert.Equal(t, 1, result.ClipsWritten())

	require.Len(t, f.sinks.Sinks, 1)
	assert.Equal(t, result.Clips[1].Path, f.sinks.Sinks[0].Path)
}

// cancelOnMotion cancels when the named pass of video reports its first
// motion sample.
func cancelOnMotion(video, pass string, cancel context.CancelFunc) ProgressFactory {
	return func(v, p string) motion.ProgressSink {
		return motion.ProgressFunc(func(pr motion.Progress) error {
			if v == video && p == pass && pr.HasMotion {
				cancel()
			}
			return nil
		})
	}
}

func TestProcessVideo_InterruptedKeepsPartialOutputs(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"cam.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.cfg.Progress = cancelOnMotion("cam.mp4", PassStills, cancel)

	result := NewProcessor(f.cfg, nil).ProcessVideo(ctx, "cam.mp4")
	assert.ErrorIs(t, result.Err, context.Canceled)

	assert.Equal(t, []string{"cam_00h00m03s.jpg"}, f.encoder.written)
	require.Len(t, result.Stills, 1)
	assert.Equal(t, 90, result.Stills[0].FrameIndex)
	assert.Empty(t, result.Clips)
	assert.Empty(t, f.sinks.Sinks)

	require.Len(t, f.recorder.videos, 1)
	recorded := f.recorder.videos[0]
	assert.ErrorIs(t, recorded.Err, context.Canceled)
	assert.Equal(t, result.Stills, recorded.Stills)
}

func TestProcessVideo_Progress(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"cam.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})

	var mu sync.Mutex
	sinks := map[string]*countingSink{}
	f.cfg.Progress = func(video, pass string) motion.ProgressSink {
		mu.Lock()
		defer mu.Unlock()
		s := &countingSink{}
		sinks[pass] = s
		return s
	}

	result := NewProcessor(f.cfg, nil).ProcessVideo(context.Background(), "cam.mp4")
	require.NoError(t, result.Err)

	require.Contains(t, sinks, PassStills)
	require.Contains(t, sinks, PassEvents)
	for pass, s := range sinks {
		assert.Equal(t, 20, s.reports, pass)
		assert.True(t, s.finished, pass)
	}
}

func TestRun_OrderAndIsolation(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"a.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
		"c.mp4": footage(twoRuns()),
		"d.mp4": footage(nil),
	})
	f.cfg.Workers = 3

	paths := []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"}
	p := NewProcessor(f.cfg, nil)
	summary := p.Run(context.Background(), paths)

	assert.Equal(t, p.RunID, summary.RunID)
	assert.Equal(t, 4, summary.Videos)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Skipped)
	assert.Equal(t, 3, summary.Events)
	assert.Equal(t, 3, summary.Clips)

	require.Len(t, summary.Results, 4)
	for i, r := range summary.Results {
		assert.Equal(t, paths[i], r.Path)
	}
	assert.True(t, media.IsMediaOpen(summary.Results[1].Err))
	assert.NoError(t, summary.Results[0].Err)
	assert.NoError(t, summary.Results[2].Err)
	assert.Empty(t, summary.Results[3].Stills)

	require.Len(t, f.recorder.runs, 1)
	assert.Equal(t, p.RunID, f.recorder.runs[0].ID)
	assert.Len(t, f.recorder.videos, 4)
	require.Len(t, f.recorder.finished, 1)
	assert.Equal(t, summary.Clips, f.recorder.finished[0].Clips)
}

func TestRun_Sequential(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"a.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
		"b.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	f.cfg.Clips = false

	summary := NewProcessor(f.cfg, nil).Run(context.Background(), []string{"a.mp4", "b.mp4"})
	assert.Equal(t, 10, summary.Stills)
	assert.Equal(t, []string{
		"a_00h00m03s.jpg", "a_00h00m04s.jpg", "a_00h00m05s.jpg", "a_00h00m06s.jpg", "a_00h00m07s.jpg",
		"b_00h00m03s.jpg", "b_00h00m04s.jpg", "b_00h00m05s.jpg", "b_00h00m06s.jpg", "b_00h00m07s.jpg",
	}, f.encoder.written)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"a.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := NewProcessor(f.cfg, nil).Run(ctx, []string{"a.mp4", "b.mp4"})
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Failed)
	for _, r := range summary.Results {
		assert.True(t, r.Skipped)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Empty(t, f.recorder.videos)
	assert.Len(t, f.recorder.finished, 1)
}

func TestRun_SameFileNameInDifferentDirectories(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"/footage/cam1/front.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
		"/footage/cam2/front.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	f.cfg.Workers = 2

	summary := NewProcessor(f.cfg, nil).Run(context.Background(),
		[]string{"/footage/cam1/front.mp4", "/footage/cam2/front.mp4"})
	require.Zero(t, summary.Failed)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "cam1_front", summary.Results[0].Name)
	assert.Equal(t, "cam2_front", summary.Results[1].Name)

	assert.Equal(t, 10, summary.Stills)
	assert.Len(t, f.encoder.written, 10)
	assert.ElementsMatch(t, []string{
		"cam1_front_00h00m03s.jpg", "cam1_front_00h00m04s.jpg", "cam1_front_00h00m05s.jpg",
		"cam1_front_00h00m06s.jpg", "cam1_front_00h00m07s.jpg",
		"cam2_front_00h00m03s.jpg", "cam2_front_00h00m04s.jpg", "cam2_front_00h00m05s.jpg",
		"cam2_front_00h00m06s.jpg", "cam2_front_00h00m07s.jpg",
	}, f.encoder.written)

	require.Len(t, f.sinks.Sinks, 2)
	clips := []string{f.sinks.Sinks[0].Path, f.sinks.Sinks[1].Path}
	assert.ElementsMatch(t, []string{
		filepath.Join(f.cfg.OutputDir, "cam1_front_clip_001_000003.mp4"),
		filepath.Join(f.cfg.OutputDir, "cam2_front_clip_001_000003.mp4"),
	}, clips)
}

func TestRun_CancelledMidRunSkipsRemaining(t *testing.T) {
	f := newFixture(t, map[string]*media.SyntheticSource{
		"a.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
		"b.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
		"c.mp4": footage(media.MovingSquare(90, 210, 60, 3)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.cfg.Progress = cancelOnMotion("a.mp4", PassStills, cancel)

	summary := NewProcessor(f.cfg, nil).Run(ctx, []string{"a.mp4", "b.mp4", "c.mp4"})
	require.Len(t, summary.Results, 3)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.False(t, summary.Results[0].Skipped)
	assert.ErrorIs(t, summary.Results[0].Err, context.Canceled)
	assert.Len(t, summary.Results[0].Stills, 1)
	for _, r := range summary.Results[1:] {
		assert.True(t, r.Skipped, r.Path)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}

	require.Len(t, f.recorder.videos, 1)
	assert.Equal(t, "a.mp4", f.recorder.videos[0].Path)
}
