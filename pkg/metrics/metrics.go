// Package metrics counts what a run did and can dump the counters in the
// node_exporter textfile format.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Chapter outcomes
const (
	StateSkipped      = "skipped"
	StateFetchedEmpty = "fetched_empty"
	StateFetched      = "fetched"
	StateErrored      = "errored"
)

// Metrics holds the run's Prometheus collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ChaptersTotal   *prometheus.CounterVec
	CommentsTotal   prometheus.Counter
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RefreshesTotal  prometheus.Counter
	CooldownsTotal  prometheus.Counter
	RunDuration     prometheus.Gauge
}

// New creates the collectors for one book
func New(bookID string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"book": bookID}, reg))

	return &Metrics{
		registry: reg,
		ChaptersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qdreviews_chapters_total",
			Help: "Chapters processed, by outcome.",
		}, []string{"state"}),
		CommentsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "qdreviews_comments_total",
			Help: "Paragraph reviews written to chapter files.",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qdreviews_http_requests_total",
			Help: "Upstream HTTP requests.",
		}, []string{"path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qdreviews_http_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		RefreshesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "qdreviews_credential_refreshes_total",
			Help: "Times the credential set was discarded and reacquired.",
		}),
		CooldownsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "qdreviews_network_cooldowns_total",
			Help: "Cooldowns taken after connectivity failures.",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qdreviews_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IncChapter counts a chapter outcome
func (m *Metrics) IncChapter(state string) {
	m.ChaptersTotal.WithLabelValues(state).Inc()
}

// AddComments counts written reviews
func (m *Metrics) AddComments(n int) {
	m.CommentsTotal.Add(float64(n))
}

// ObserveRequest records one upstream exchange
func (m *Metrics) ObserveRequest(path string, status int, d time.Duration) {
	m.RequestsTotal.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(path).Observe(d.Seconds())
}

// WriteTextfile writes every collector to path atomically
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
