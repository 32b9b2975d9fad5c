// Package catalog keeps a SQLite index of batch runs and everything they
// produced, so stills and clips can be found again by video, time or event.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nvr-ai/motion-extract/batch"
	"github.com/nvr-ai/motion-extract/motion"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id            TEXT PRIMARY KEY,
		started_at        TIMESTAMP,
		finished_at       TIMESTAMP,
		output_dir        TEXT,
		mode              TEXT,
		config            TEXT,
		videos            BIGINT,
		failed            BIGINT,
		stills            BIGINT,
		events            BIGINT,
		clips             BIGINT
	);
	CREATE TABLE IF NOT EXISTS videos (
		video_id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id            TEXT,
		path              TEXT,
		fps               DOUBLE,
		frame_count       BIGINT,
		width             BIGINT,
		height            BIGINT,
		elapsed_ms        BIGINT,
		error             TEXT,
		timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
	CREATE TABLE IF NOT EXISTS stills (
		video_id          BIGINT,
		path              TEXT,
		seconds           DOUBLE,
		frame_index       BIGINT,
		regions           BIGINT,
		FOREIGN KEY(video_id) REFERENCES videos(video_id)
	);
	CREATE TABLE IF NOT EXISTS events (
		video_id          BIGINT,
		event_index       BIGINT,
		start_time        DOUBLE,
		end_time          DOUBLE,
		duration          DOUBLE,
		start_frame       BIGINT,
		end_frame         BIGINT,
		FOREIGN KEY(video_id) REFERENCES videos(video_id)
	);
	CREATE TABLE IF NOT EXISTS clips (
		video_id          BIGINT,
		event_index       BIGINT,
		path              TEXT,
		clip_start        DOUBLE,
		clip_end          DOUBLE,
		frames_written    BIGINT,
		error             TEXT,
		FOREIGN KEY(video_id) REFERENCES videos(video_id)
	);
`

// Store is a batch.Recorder backed by SQLite.
type Store struct {
	*sql.DB
}

var _ batch.Recorder = (*Store)(nil)

// Open opens (or creates) the catalog at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open catalog %s", path)
	}
	// One writer at a time; workers share the handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create catalog schema")
	}
	return &Store{db}, nil
}

// StartRun implements batch.Recorder.
func (s *Store) StartRun(ctx context.Context, run batch.Run) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return errors.Wrap(err, "encode run config")
	}
	_, err = s.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, output_dir, mode, config) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.OutputDir, run.Mode, string(cfg))
	return errors.Wrapf(err, "insert run %s", run.ID)
}

// RecordVideo implements batch.Recorder. The video and all of its outputs are
// written in one transaction.
func (s *Store) RecordVideo(ctx context.Context, runID string, result batch.VideoResult) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin video transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO videos (run_id, path, fps, frame_count, width, height, elapsed_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, result.Path, result.Info.FPS, result.Info.FrameCount, result.Info.Width, result.Info.Height,
		result.Elapsed.Milliseconds(), errText(result.Err))
	if err != nil {
		return errors.Wrapf(err, "insert video %s", result.Path)
	}
	videoID, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "video id")
	}

	for _, still := range result.Stills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stills (video_id, path, seconds, frame_index, regions) VALUES (?, ?, ?, ?, ?)`,
			videoID, still.Path, still.Timestamp, still.FrameIndex, still.Regions); err != nil {
			return errors.Wrapf(err, "insert still %s", still.Path)
		}
	}
	for i, event := range result.Events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (video_id, event_index, start_time, end_time, duration, start_frame, end_frame)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			videoID, i+1, event.StartTime, event.EndTime, event.Duration, event.StartFrame, event.EndFrame); err != nil {
			return errors.Wrapf(err, "insert event %d", i+1)
		}
	}
	for _, clip := range result.Clips {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clips (video_id, event_index, path, clip_start, clip_end, frames_written, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			videoID, clip.EventIndex, clip.Path, clip.Window.StartTime, clip.Window.EndTime,
			clip.FramesWritten, errText(clip.Err)); err != nil {
			return errors.Wrapf(err, "insert clip %s", clip.Path)
		}
	}

	return errors.Wrap(tx.Commit(), "commit video")
}

// FinishRun implements batch.Recorder.
func (s *Store) FinishRun(ctx context.Context, runID string, summary batch.Summary) error {
	_, err := s.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, videos = ?, failed = ?, stills = ?, events = ?, clips = ? WHERE run_id = ?`,
		time.Now().UTC(), summary.Videos, summary.Failed, summary.Stills, summary.Events, summary.Clips, runID)
	return errors.Wrapf(err, "finish run %s", runID)
}

// EventRecord is an event as stored in the catalog.
type EventRecord struct {
	Video string
	Index int
	motion.Event
}

// Events returns the events of runID ordered by video path and start time.
func (s *Store) Events(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT v.path, e.event_index, e.start_time, e.end_time, e.duration, e.start_frame, e.end_frame
		FROM events e JOIN videos v ON v.video_id = e.video_id
		WHERE v.run_id = ?
		ORDER BY v.path, e.start_time`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		if err := rows.Scan(&r.Video, &r.Index, &r.StartTime, &r.EndTime, &r.Duration, &r.StartFrame, &r.EndFrame); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate events")
}

// ClipRecord is a clip as stored in the catalog. Error is empty for clips
// written successfully.
type ClipRecord struct {
	Video         string
	EventIndex    int
	Path          string
	StartTime     float64
	EndTime       float64
	FramesWritten int
	Error         string
}

// Clips returns the clips of runID ordered by video path and event index.
func (s *Store) Clips(ctx context.Context, runID string) ([]ClipRecord, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT v.path, c.event_index, c.path, c.clip_start, c.clip_end, c.frames_written, COALESCE(c.error, '')
		FROM clips c JOIN videos v ON v.video_id = c.video_id
		WHERE v.run_id = ?
		ORDER BY v.path, c.event_index`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "query clips")
	}
	defer rows.Close()

	var out []ClipRecord
	for rows.Next() {
		var r ClipRecord
		if err := rows.Scan(&r.Video, &r.EventIndex, &r.Path, &r.StartTime, &r.EndTime, &r.FramesWritten, &r.Error); err != nil {
			return nil, errors.Wrap(err, "scan clip")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate clips")
}

// StillCount returns how many stills runID recorded.
func (s *Store) StillCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM stills st JOIN videos v ON v.video_id = st.video_id
		WHERE v.run_id = ?`, runID).Scan(&n)
	return n, errors.Wrap(err, "count stills")
}

func errText(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
