// Package metrics holds the Prometheus collectors of the client and the MCP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client metrics.
var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perplexity",
			Name:      "requests_total",
			Help:      "Total number of ask requests",
		},
		[]string{"mode", "status"},
	)

	LegDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "perplexity",
			Name:      "leg_duration_seconds",
			Help:      "Duration of one network leg in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"leg", "status"},
	)

	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perplexity",
			Name:      "frames_total",
			Help:      "Stream frames seen by the decoder",
		},
		[]string{"kind"}, // "event" / "invalid" / "malformed"
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perplexity",
			Name:      "uploads_total",
			Help:      "File uploads by storage backend",
		},
		[]string{"backend", "status"}, // backend: "image" / "object"
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(LegDuration)
	prometheus.MustRegister(FramesTotal)
	prometheus.MustRegister(UploadsTotal)
}

// ObserveLeg records the duration of a network leg since start.
func ObserveLeg(leg string, start time.Time, err error) {
	LegDuration.WithLabelValues(leg, Status(err)).Observe(time.Since(start).Seconds())
}

// Status maps an error to the status label used by the collectors.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
