package obs

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsFunc reports the current namespace and physical entry counts.
type StatsFunc func() (namespaces int, entries int)

type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	operations      *prometheus.CounterVec
	sweepRemoved    prometheus.Counter
	sweepDuration   prometheus.Histogram
	statsOnce       sync.Once
}

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryhttpd_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "status_class"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memoryhttpd_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryhttpd_operations_total",
		Help: "Total keyspace operations by outcome",
	}, []string{"op", "result"})

	sweepRemoved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "memoryhttpd_sweep_removed_total",
		Help: "Total expired entries removed by the background sweep",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "memoryhttpd_sweep_duration_seconds",
		Help:    "Background sweep pass duration",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	registry.MustRegister(requests, requestDuration, operations, sweepRemoved, sweepDuration)

	return &Metrics{
		registry:        registry,
		requests:        requests,
		requestDuration: requestDuration,
		operations:      operations,
		sweepRemoved:    sweepRemoved,
		sweepDuration:   sweepDuration,
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackStats exposes namespace and entry gauges backed by stats. Only the
// first call registers.
func (m *Metrics) TrackStats(stats StatsFunc) {
	if m == nil || stats == nil {
		return
	}
	m.statsOnce.Do(func() {
		namespaces := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "memoryhttpd_namespaces",
			Help: "Number of host namespaces",
		}, func() float64 {
			n, _ := stats()
			return float64(n)
		})
		entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "memoryhttpd_entries",
			Help: "Number of stored records, including expired ones not yet swept",
		}, func() float64 {
			_, n := stats()
			return float64(n)
		})
		m.registry.MustRegister(namespaces, entries)
	})
}

func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	method = canonMethod(method)
	m.requests.WithLabelValues(method, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordOperation(op string, result string) {
	if m == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	if result == "" {
		result = "unknown"
	}
	m.operations.WithLabelValues(strings.ToLower(op), result).Inc()
}

// RecordSweep matches registry.SweepFunc.
func (m *Metrics) RecordSweep(removed int, took time.Duration) {
	if m == nil {
		return
	}
	if removed > 0 {
		m.sweepRemoved.Add(float64(removed))
	}
	m.sweepDuration.Observe(took.Seconds())
}

func canonMethod(method string) string {
	method = strings.ToUpper(method)
	if knownMethods[method] {
		return method
	}
	return "other"
}

func statusClass(status int) string {
	if status <= 0 {
		return "unknown"
	}
	class := status / 100
	return fmt.Sprintf("%dxx", class)
}
