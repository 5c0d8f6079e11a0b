// internal/metrics/collector.go
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector manages metrics collection for journey runs
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transportErrors *prometheus.CounterVec
	stepsTotal      *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
}

// NewCollector creates a collector registered on its own registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userjourney_requests_total",
				Help: "Total number of requests sent to the target API",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "userjourney_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		transportErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userjourney_transport_errors_total",
				Help: "Requests that failed before a response was received",
			},
			[]string{"method", "route"},
		),
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "userjourney_steps_total",
				Help: "Journey steps by outcome",
			},
			[]string{"step", "outcome"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "userjourney_step_duration_seconds",
				Help:    "Step duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"step"},
		),
	}
}

// Registry exposes the underlying registry for scraping or tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordRequest records metrics for a completed request
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordTransportError records a request that never got a response
func (c *Collector) RecordTransportError(method, route string) {
	if c == nil {
		return
	}
	c.transportErrors.WithLabelValues(method, route).Inc()
}

// RecordStep records the outcome of a journey step
func (c *Collector) RecordStep(step, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.stepsTotal.WithLabelValues(step, outcome).Inc()
	if duration > 0 {
		c.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
	}
}

// WriteTextfile dumps all metrics in the node_exporter textfile format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return strconv.Itoa(status)
	}
}
