package gateway

import (
	"bufio"
	"net"
	"net/http"
	"sync/atomic"
)

// Metrics tracks gateway-level counters using atomic operations for lock-free concurrency.
// A nil *Metrics ignores every record.
type Metrics struct {
	requests     atomic.Int64
	serverErrors atomic.Int64
	authFailures atomic.Int64
	rateLimited  atomic.Int64
}

// RecordRequest records a served request and its status code.
func (m *Metrics) RecordRequest(status int) {
	if m == nil {
		return
	}
	m.requests.Add(1)
	if status >= http.StatusInternalServerError {
		m.serverErrors.Add(1)
	}
}

// RecordAuthFailure records a rejected credential.
func (m *Metrics) RecordAuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Add(1)
}

// RecordRateLimited records an auth attempt refused by the limiter.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Add(1)
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Requests:     m.requests.Load(),
		ServerErrors: m.serverErrors.Load(),
		AuthFailures: m.authFailures.Load(),
		RateLimited:  m.rateLimited.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests     int64 `json:"requests"`
	ServerErrors int64 `json:"server_errors"`
	AuthFailures int64 `json:"auth_failures"`
	RateLimited  int64 `json:"rate_limited"`
}

// countRequests records every response status in m.
func countRequests(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.RecordRequest(sw.status)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack hands the connection to websocket upgrades.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}
