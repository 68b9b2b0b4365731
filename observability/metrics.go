package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	chainMetricsOnce sync.Once
	chainRegistry    *chainMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farmchain",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farmchain",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "farmchain",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farmchain",
				Subsystem: "module",
				Name:      "throttles_total",
				Help:      "Count of module requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. code is the JSON-RPC error
// code written to the caller, zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit" so dashboards
// and alerts remain consistent.
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

type chainMetrics struct {
	height        prometheus.Gauge
	blockInterval prometheus.Histogram
	rollbacks     *prometheus.CounterVec
}

// Chain returns the registry tracking the host's chain head.
func Chain() *chainMetrics {
	chainMetricsOnce.Do(func() {
		chainRegistry = &chainMetrics{
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "farmchain",
				Subsystem: "chain",
				Name:      "height",
				Help:      "Current block height of the host.",
			}),
			blockInterval: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "farmchain",
				Subsystem: "chain",
				Name:      "block_interval_seconds",
				Help:      "Observed wall-clock interval between produced blocks.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			}),
			rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "farmchain",
				Subsystem: "chain",
				Name:      "rollbacks_total",
				Help:      "Count of calls whose state changes were rolled back, by operation.",
			}, []string{"operation"}),
		}
		prometheus.MustRegister(chainRegistry.height, chainRegistry.blockInterval, chainRegistry.rollbacks)
	})
	return chainRegistry
}

func (m *chainMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

func (m *chainMetrics) RecordBlockInterval(interval time.Duration) {
	if m == nil || interval <= 0 {
		return
	}
	m.blockInterval.Observe(interval.Seconds())
}

func (m *chainMetrics) RecordRollback(operation string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	m.rollbacks.WithLabelValues(op).Inc()
}
