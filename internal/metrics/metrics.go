// Package metrics holds the Prometheus collectors shared by the edge handler
// and the preview server.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a
// no-op. The edge binary runs without a registry.
type Metrics struct {
	registry    *prometheus.Registry
	resolutions *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	failures    prometheus.Counter
	reports     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cc_edge_environment_resolutions_total",
				Help: "Host lookups by resolved environment and whether the default was used.",
			},
			[]string{"environment", "fallback"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cc_edge_csp_keywords_dropped_total",
				Help: "Disallowed CSP keywords removed from a directive.",
			},
			[]string{"directive", "keyword"},
		),
		failures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cc_edge_header_injection_failures_total",
				Help: "Responses returned without security headers because header construction failed.",
			},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cc_edge_csp_reports_total",
				Help: "CSP violation reports received by effective directive.",
			},
			[]string{"directive"},
		),
	}
	m.registry.MustRegister(m.resolutions, m.dropped, m.failures, m.reports)
	return m
}

func (m *Metrics) Resolved(environment string, fallback bool) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(environment, strconv.FormatBool(fallback)).Inc()
}

func (m *Metrics) KeywordDropped(directive, keyword string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(directive, keyword).Inc()
}

func (m *Metrics) InjectionFailed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

func (m *Metrics) ReportReceived(directive string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(directive).Inc()
}

// Gatherer exposes the private registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}
