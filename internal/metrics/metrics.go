package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisRuns counts analysis runs by outcome (ok, error, invalid)
var AnalysisRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cma_analysis_runs_total",
		Help: "Total number of analysis runs by outcome",
	},
	[]string{"outcome"},
)

// AnalysisDuration records wall time of a run, market data fetches included
var AnalysisDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "cma_analysis_duration_seconds",
		Help:    "Duration in seconds of a full analysis run",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
	},
)

// Upstream market data provider metrics
var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cma_upstream_requests_total",
			Help: "Requests sent to the market data provider by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cma_upstream_request_duration_seconds",
			Help:    "Latency of market data provider requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// ChartsRendered counts rendered chart images by kind
var ChartsRendered = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cma_charts_rendered_total",
		Help: "Chart images rendered by kind",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(AnalysisRuns, AnalysisDuration)
	prometheus.MustRegister(UpstreamRequests, UpstreamLatency)
	prometheus.MustRegister(ChartsRendered)
}
