package detection

import "github.com/prometheus/client_golang/prometheus"

// Failure reasons recorded in solarwatch_detection_failures_total.
const (
	reasonInvalidArgument = "invalid_argument"
	reasonSource          = "source"
	reasonRender          = "render"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarwatch_detection_runs_total",
			Help: "Scored windows by detection method.",
		},
		[]string{"method"},
	)
	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarwatch_detection_anomalies_total",
			Help: "Flagged days by anomaly type.",
		},
		[]string{"type"},
	)
	windowSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "solarwatch_detection_window_size",
			Help:    "Number of daily records per scored window.",
			Buckets: []float64{1, 7, 14, 30, 60, 90, 180, 365},
		},
	)
	failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solarwatch_detection_failures_total",
			Help: "Detection requests that failed, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(runsTotal, anomaliesTotal, windowSize, failuresTotal)
}
