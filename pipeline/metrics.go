package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contractlens_analyses_submitted_total",
		Help: "Documents accepted for analysis.",
	})
	analysesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contractlens_analyses_deduplicated_total",
		Help: "Submissions answered with an analysis already in flight.",
	})
	analysesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contractlens_analyses_finished_total",
		Help: "Analyses that reached a terminal state, by status and error kind.",
	}, []string{"status", "kind"})
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contractlens_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	analysesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contractlens_analyses_in_flight",
		Help: "Analyses pending or processing.",
	})
)
