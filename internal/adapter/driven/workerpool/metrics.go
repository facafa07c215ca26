package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesTotal counts finished probes. [status].
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetusers_probes_total",
			Help: "Total number of connectivity probes by outcome",
		},
		[]string{"status"},
	)

	ProbeDurationHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assetusers_probe_duration_seconds",
			Help:    "Time taken by a single connectivity probe",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	QueueDepthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetusers_probe_queue_depth",
			Help: "Current number of probe tasks waiting for a worker",
		},
	)

	InFlightGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetusers_probes_in_flight",
			Help: "Number of probes currently executing",
		},
	)

	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetusers_probe_jobs_submitted_total",
			Help: "Total number of probe jobs submitted",
		},
	)

	// QueueRejectionsTotal counts tasks recorded as failed because the queue
	// had no room.
	QueueRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assetusers_probe_queue_rejections_total",
			Help: "Total number of probe tasks rejected because the queue was full",
		},
	)
)
