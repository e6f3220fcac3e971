// Package metrics exposes control-point counters on a private Prometheus registry.
//
// Every method is safe to call on a nil *Metrics so components can be built
// without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Datagram kinds and results used as label values.
const (
	DatagramSearchResponse = "search_response"
	DatagramNotify         = "notify"

	ResultAccepted = "accepted"
	ResultDropped  = "dropped"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	registry            *prometheus.Registry
	datagrams           *prometheus.CounterVec
	searches            prometheus.Counter
	searchDuration      prometheus.Histogram
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	events              *prometheus.CounterVec
}

// New creates a fresh registry with the SSDP, HTTP and GENA collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	datagrams := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upnpctl",
		Subsystem: "ssdp",
		Name:      "datagrams_total",
		Help:      "SSDP datagrams received, by kind and whether they decoded",
	}, []string{"kind", "result"})

	searches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "upnpctl",
		Subsystem: "ssdp",
		Name:      "searches_total",
		Help:      "M-SEARCH requests sent",
	})

	searchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "upnpctl",
		Name:      "search_duration_seconds",
		Help:      "Wall time of a search window",
		Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 30},
	})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upnpctl",
		Name:      "http_requests_total",
		Help:      "Outbound HTTP requests to devices, by operation and status",
	}, []string{"op", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "upnpctl",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of outbound HTTP requests to devices",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upnpctl",
		Subsystem: "gena",
		Name:      "events_total",
		Help:      "Event notifications received on the callback server",
	}, []string{"result"})

	registry.MustRegister(
		datagrams,
		searches,
		searchDuration,
		httpRequests,
		httpRequestDuration,
		events,
	)

	return &Metrics{
		registry:            registry,
		datagrams:           datagrams,
		searches:            searches,
		searchDuration:      searchDuration,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		events:              events,
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveDatagram counts one received datagram.
func (m *Metrics) ObserveDatagram(kind, result string) {
	if m == nil {
		return
	}
	m.datagrams.WithLabelValues(kind, result).Inc()
}

// ObserveSearch counts one search and records how long its window lasted.
func (m *Metrics) ObserveSearch(duration time.Duration) {
	if m == nil {
		return
	}
	m.searches.Inc()
	m.searchDuration.Observe(duration.Seconds())
}

// ObserveHTTPRequest records one request/response cycle. A status of 0 means
// no response was received.
func (m *Metrics) ObserveHTTPRequest(op string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	m.httpRequests.WithLabelValues(op, statusLabel).Inc()
	m.httpRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveEvent counts one NOTIFY delivered to the callback server.
func (m *Metrics) ObserveEvent(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
