// Package metrics exposes Prometheus collectors for the binder, the
// transcoder, the data cell table and tap suites.
//
// A Collector owns its registry and implements the recorder interfaces of
// those packages, so wiring is a matter of passing it as an option:
//
//	c := metrics.NewCollector("afb")
//	tc := transcoder.New(transcoder.WithRecorder(c))
//	c.Observe(tc.Table())
//	b := binder.New(binder.WithTranscoder(tc), binder.WithRecorder(c))
//	suite.SetRecorder(c)
//	http.Handle("/metrics", c.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wippyai/afb-runtime/resource"
)

// Collector records runtime metrics in a dedicated registry.
type Collector struct {
	registry *prometheus.Registry

	// Binder metrics
	verbCalls   *prometheus.CounterVec
	verbLatency *prometheus.HistogramVec

	// Transcoder metrics
	conversionFailures *prometheus.CounterVec

	// Data cell metrics
	cellsLive     prometheus.Gauge
	cellsCreated  prometheus.Counter
	cellsReleased prometheus.Counter

	// Tap metrics
	testsTotal   *prometheus.CounterVec
	testDuration *prometheus.HistogramVec
}

// NewCollector creates a collector. An empty namespace defaults to "afb".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "afb"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.verbCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binder",
			Name:      "verb_calls_total",
			Help:      "Total number of answered verb calls",
		},
		[]string{"api", "verb", "status"},
	)

	c.verbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "binder",
			Name:      "verb_duration_seconds",
			Help:      "Time between a verb dispatch and its reply",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		},
		[]string{"api", "verb"},
	)

	c.conversionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcoder",
			Name:      "conversion_failures_total",
			Help:      "Total number of failed data cell conversions",
		},
		[]string{"from", "to"},
	)

	c.cellsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cells",
		Name:      "live",
		Help:      "Current number of live data cells",
	})

	c.cellsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cells",
		Name:      "created_total",
		Help:      "Total number of data cells created",
	})

	c.cellsReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cells",
		Name:      "released_total",
		Help:      "Total number of data cells released",
	})

	c.testsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tap",
			Name:      "tests_total",
			Help:      "Total number of completed tap tests",
		},
		[]string{"suite", "group", "result"},
	)

	c.testDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tap",
			Name:      "test_duration_seconds",
			Help:      "Time from test post to outcome",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"suite", "group"},
	)

	c.registry.MustRegister(
		c.verbCalls,
		c.verbLatency,
		c.conversionFailures,
		c.cellsLive,
		c.cellsCreated,
		c.cellsReleased,
		c.testsTotal,
		c.testDuration,
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// VerbCalled records an answered call.
func (c *Collector) VerbCalled(api, verb string, status int, elapsed time.Duration) {
	c.verbCalls.WithLabelValues(api, verb, strconv.Itoa(status)).Inc()
	c.verbLatency.WithLabelValues(api, verb).Observe(elapsed.Seconds())
}

// ConversionFailed records a conversion with no path or a failing step.
func (c *Collector) ConversionFailed(from, to string) {
	c.conversionFailures.WithLabelValues(from, to).Inc()
}

// TestCompleted records a tap test outcome.
func (c *Collector) TestCompleted(suite, group, test string, passed bool, elapsed time.Duration) {
	result := "fail"
	if passed {
		result = "pass"
	}
	c.testsTotal.WithLabelValues(suite, group, result).Inc()
	c.testDuration.WithLabelValues(suite, group).Observe(elapsed.Seconds())
}

// Observe subscribes the collector to the lifecycle events of table and
// seeds the live gauge with its current size.
func (c *Collector) Observe(table resource.Table) {
	c.cellsLive.Add(float64(table.Len()))
	table.Subscribe(c)
}

// OnResourceEvent implements resource.Observer.
func (c *Collector) OnResourceEvent(e resource.Event) {
	switch e.Type {
	case resource.EventCreated:
		c.cellsCreated.Inc()
		c.cellsLive.Inc()
	case resource.EventReleased:
		c.cellsReleased.Inc()
		c.cellsLive.Dec()
	}
}
