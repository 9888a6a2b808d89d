package compositor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Release paths reported by tilesReleasedTotal.
const (
	releaseDrain = "drain"
	releaseGrid  = "grid"
)

var (
	actionsCommittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compositor_actions_committed_total",
		Help: "Actions taken from the action log, by outcome",
	}, []string{"result"})

	framesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compositor_frames_recorded_total",
		Help: "Frames whose dirty tiles were recorded into raster task groups",
	})

	rasterTasksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "compositor_raster_tasks_total",
		Help: "Tile raster tasks submitted to the worker pool",
	})

	rasterTaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "compositor_raster_task_duration_seconds",
		Help:    "Time spent painting one tile",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	tilesReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "compositor_tiles_released_total",
		Help: "Tile references dropped from the release queue, by path",
	}, []string{"path"})

	releaseQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "compositor_release_queue_length",
		Help: "Tile references waiting in the release queue",
	})
)
