// Package metrics exposes Prometheus collectors for the polling loop, the
// dispatch chain and the Bot API transport. Every method is safe to call on
// a nil *Metrics, so components can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tgplug"

// Metrics holds the process-wide collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	polls            *prometheus.CounterVec
	updatesReceived  prometheus.Counter
	updatesHandled   *prometheus.CounterVec
	updatesUnhandled prometheus.Counter
	dispatchErrors   prometheus.Counter
	apiCalls         *prometheus.CounterVec
	offset           prometheus.Gauge
	backoff          prometheus.Gauge
}

// New creates a Metrics instance with Go runtime and process collectors
// registered alongside the bot collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "getUpdates cycles by result.",
		}, []string{"result"}),
		updatesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_received_total",
			Help:      "Updates returned by getUpdates.",
		}),
		updatesHandled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_handled_total",
			Help:      "Updates handled, by the plugin that handled them.",
		}, []string{"plugin"}),
		updatesUnhandled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_unhandled_total",
			Help:      "Updates no plugin handled.",
		}),
		dispatchErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_errors_total",
			Help:      "Updates whose dispatch failed in a plugin.",
		}),
		apiCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Bot API calls by method and result.",
		}, []string{"method", "result"}),
		offset: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_offset",
			Help:      "Current getUpdates offset.",
		}),
		backoff: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_backoff_seconds",
			Help:      "Backoff applied before the next poll.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordPoll counts one getUpdates cycle.
func (m *Metrics) RecordPoll(err error) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result(err)).Inc()
}

// RecordUpdates counts updates received in one batch.
func (m *Metrics) RecordUpdates(n int) {
	if m == nil {
		return
	}
	m.updatesReceived.Add(float64(n))
}

// RecordHandled counts an update handled by plugin.
func (m *Metrics) RecordHandled(plugin string) {
	if m == nil {
		return
	}
	m.updatesHandled.WithLabelValues(plugin).Inc()
}

// RecordUnhandled counts an update that every plugin declined.
func (m *Metrics) RecordUnhandled() {
	if m == nil {
		return
	}
	m.updatesUnhandled.Inc()
}

// RecordDispatchError counts an update whose dispatch failed.
func (m *Metrics) RecordDispatchError() {
	if m == nil {
		return
	}
	m.dispatchErrors.Inc()
}

// RecordAPICall counts one Bot API call.
func (m *Metrics) RecordAPICall(method string, err error) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(method, result(err)).Inc()
}

// SetOffset records the current poll offset.
func (m *Metrics) SetOffset(offset int64) {
	if m == nil {
		return
	}
	m.offset.Set(float64(offset))
}

// SetBackoff records the backoff about to be applied.
func (m *Metrics) SetBackoff(d time.Duration) {
	if m == nil {
		return
	}
	m.backoff.Set(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
