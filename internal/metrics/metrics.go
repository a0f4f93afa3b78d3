package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"presencegofer/internal/chat"
	"presencegofer/internal/effect"
)

const namespace = "presencegofer"

// Metrics holds the service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	subscribes   prometheus.Counter
	unsubscribes prometheus.Counter
	failures     *prometheus.CounterVec
	sessions     prometheus.Gauge
	published    *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		subscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribes_total",
			Help:      "Total number of successful friend status subscribes.",
		}),
		unsubscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsubscribes_total",
			Help:      "Total number of successful friend status unsubscribes.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_failures_total",
			Help:      "Failed subscribe and unsubscribe calls by operation.",
		}, []string{"op"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open client sessions.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statuses_published_total",
			Help:      "Presence changes fanned out by the hub.",
		}, []string{"online"}),
	}

	m.registry.MustRegister(m.subscribes, m.unsubscribes, m.failures, m.sessions, m.published)
	return m
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Subscribed implements effect.Observer
func (m *Metrics) Subscribed() {
	m.subscribes.Inc()
}

// Unsubscribed implements effect.Observer
func (m *Metrics) Unsubscribed() {
	m.unsubscribes.Inc()
}

// Failed implements effect.Observer
func (m *Metrics) Failed(op effect.Op) {
	m.failures.WithLabelValues(string(op)).Inc()
}

// SessionOpened records a new client session
func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
}

// SessionClosed records a closed client session
func (m *Metrics) SessionClosed() {
	m.sessions.Dec()
}

// StatusPublished records a presence change fanned out by the hub
func (m *Metrics) StatusPublished(s chat.Status) {
	m.published.WithLabelValues(strconv.FormatBool(s.IsOnline)).Inc()
}

var _ effect.Observer = (*Metrics)(nil)
