// Package metrics - Prometheus collectors for motion extraction runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "motion_extract"

var (
	FramesAnalyzedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_analyzed_total",
		Help:      "Total number of sampled frames run through the motion detector, by pass",
	}, []string{"pass"})

	MotionFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "motion_frames_total",
		Help:      "Total number of sampled frames with motion",
	})

	StillsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stills_written_total",
		Help:      "Total number of still images written, by status",
	}, []string{"status"})

	EventsDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_detected_total",
		Help:      "Total number of motion events that met the minimum duration",
	})

	ClipsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clips_written_total",
		Help:      "Total number of clips written, by status",
	}, []string{"status"})

	ClipFramesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "clip_frames_written_total",
		Help:      "Total number of frames written across all clips",
	})

	VideosProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "videos_processed_total",
		Help:      "Total number of videos processed, by status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of each processing stage per video",
		Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_workers",
		Help:      "Number of videos currently being processed",
	})
)

// Status labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)
