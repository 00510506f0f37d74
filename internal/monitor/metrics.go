package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScrapeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tailspot",
		Name:      "scrape_runs_total",
		Help:      "Total number of finished scrape job executions",
	}, []string{"source", "outcome"})

	ScrapeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tailspot",
		Name:      "scrape_duration_seconds",
		Help:      "Wall-clock duration of scrape job executions",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"source"})

	PhotosFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tailspot",
		Name:      "photos_found_total",
		Help:      "Total number of candidate photos returned by scrapes",
	}, []string{"source"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tailspot",
		Name:      "queue_depth",
		Help:      "Number of scrape jobs waiting for a worker",
	})

	InFlightJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tailspot",
		Name:      "in_flight_jobs",
		Help:      "Number of scrape jobs currently held by workers",
	})

	ReviewPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tailspot",
		Name:      "review_pending",
		Help:      "Number of candidates at or above the review threshold awaiting a decision",
	})
)
