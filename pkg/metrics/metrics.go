// Package metrics exposes ingestion and notification counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification results.
const (
	ResultSent      = "sent"
	ResultFailed    = "failed"
	ResultThrottled = "throttled"
)

// Metrics holds all Prometheus metrics for a catlog run.
type Metrics struct {
	LinesTotal         *prometheus.CounterVec
	DetectionsTotal    *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catlog",
			Subsystem: "ingest",
			Name:      "lines_total",
			Help:      "Total number of lines read, by stream.",
		}, []string{"stream"}), // stream: stdin, file, stdout, stderr
		DetectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catlog",
			Subsystem: "detect",
			Name:      "status_total",
			Help:      "Total number of status codes detected, by class.",
		}, []string{"class"}),
		NotificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catlog",
			Subsystem: "notify",
			Name:      "total",
			Help:      "Total number of notifications attempted, by result.",
		}, []string{"result"}), // result: sent, failed, throttled
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
