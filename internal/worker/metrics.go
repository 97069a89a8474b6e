package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rfpflow_jobs_processed_total",
		Help: "Jobs processed per pipeline stage, labelled by outcome.",
	}, []string{"stage", "outcome"})

	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rfpflow_job_duration_seconds",
		Help:    "Wall-clock time spent handling one job.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"stage"})

	queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rfpflow_queue_depth",
		Help: "Pending jobs per queue at last poll.",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(jobsProcessed, jobDuration, queueDepth)
}
