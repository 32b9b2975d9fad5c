package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/motion-extract/batch"
	"github.com/nvr-ai/motion-extract/media"
	"github.com/nvr-ai/motion-extract/motion"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	run := batch.Run{ID: "run-1", StartedAt: time.Now(), OutputDir: "/out", Mode: "all", Config: motion.DefaultConfig()}
	require.NoError(t, store.StartRun(ctx, run))

	event := motion.Event{StartTime: 3, EndTime: 7, Duration: 4, StartFrame: 90, EndFrame: 210}
	require.NoError(t, store.RecordVideo(ctx, run.ID, batch.VideoResult{
		Path: "/cams/cam.mp4",
		Info: media.Info{FPS: 30, FrameCount: 300, Width: 640, Height: 360},
		Stills: []batch.StillOutput{
			{Path: "/out/cam_00h00m03s.jpg", Timestamp: 3, FrameIndex: 90, Regions: 1},
			{Path: "/out/cam_00h00m04s.jpg", Timestamp: 4, FrameIndex: 120, Regions: 2},
		},
		Events: []motion.Event{event},
		Clips: []batch.ClipOutput{{
			Path:          "/out/cam_clip_001_000003.mp4",
			EventIndex:    1,
			Event:         event,
			Window:        motion.WindowFor(event, 1, 1, 30),
			FramesWritten: 181,
		}},
		Elapsed: 2 * time.Second,
	}))

	require.NoError(t, store.RecordVideo(ctx, run.ID, batch.VideoResult{
		Path: "/cams/broken.mp4",
		Err:  media.Wrapf(media.ErrMediaOpen, errors.New("moov atom not found"), "open broken.mp4"),
	}))

	require.NoError(t, store.FinishRun(ctx, run.ID, batch.Summary{Videos: 2, Failed: 1, Stills: 2, Events: 1, Clips: 1}))

	events, err := store.Events(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "/cams/cam.mp4", events[0].Video)
	assert.Equal(t, 1, events[0].Index)
	assert.Equal(t, event, events[0].Event)

	clips, err := store.Clips(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, ClipRecord{
		Video:         "/cams/cam.mp4",
		EventIndex:    1,
		Path:          "/out/cam_clip_001_000003.mp4",
		StartTime:     2,
		EndTime:       8,
		FramesWritten: 181,
	}, clips[0])

	stills, err := store.StillCount(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stills)

	var failed, videos int
	require.NoError(t, store.QueryRow(`SELECT failed, videos FROM runs WHERE run_id = ?`, run.ID).Scan(&failed, &videos))
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, videos)

	var videoErr string
	require.NoError(t, store.QueryRow(`SELECT error FROM videos WHERE path = ?`, "/cams/broken.mp4").Scan(&videoErr))
	assert.Contains(t, videoErr, "moov atom not found")
}

func TestStore_RunsAreSeparate(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.StartRun(ctx, batch.Run{ID: id, StartedAt: time.Now()}))
		require.NoError(t, store.RecordVideo(ctx, id, batch.VideoResult{
			Path:   id + ".mp4",
			Events: []motion.Event{{StartTime: 1, EndTime: 5, Duration: 4}},
		}))
	}

	events, err := store.Events(ctx, "a")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a.mp4", events[0].Video)
}

func TestStore_DuplicateRun(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	run := batch.Run{ID: "dup", StartedAt: time.Now()}
	require.NoError(t, store.StartRun(ctx, run))
	assert.Error(t, store.StartRun(ctx, run))
}

func TestOpen_ExistingCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.StartRun(context.Background(), batch.Run{ID: "kept", StartedAt: time.Now()}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	var n int
	require.NoError(t, second.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n))
	assert.Equal(t, 1, n)
}
