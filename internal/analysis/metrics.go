package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "elements_analyses_total",
		Help: "Completed analysis runs by method and outcome.",
	}, []string{"method", "outcome"})

	iterationsPerRun = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "elements_extraction_iterations",
		Help:    "Generation attempts used per extraction run.",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	chunksRetrieved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "elements_reasoning_chunks_retrieved",
		Help:    "Chunks selected as context per reasoning run.",
		Buckets: prometheus.LinearBuckets(5, 5, 6),
	})
)
