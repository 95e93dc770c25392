// Package monitoring counts the tracing core's own misbehavior.
//
// The error policy is "recover locally, count it": double span ends,
// attribute writes on closed spans, malformed propagation headers,
// sanitizer fallbacks, and consumed carriers never surface to the host
// application, they increment a counter here instead.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the core's Prometheus counters.
type Metrics struct {
	// Span lifecycle
	SpanDoubleEnd    prometheus.Counter
	SpanAttrAfterEnd prometheus.Counter
	SpanForcedEnd    prometheus.Counter

	// Propagation
	ContextMalformed   *prometheus.CounterVec
	CarrierUnavailable *prometheus.CounterVec

	// Sanitization
	SanitizeFallback prometheus.Counter

	// Export
	SpansExported prometheus.Counter
	SpansDropped  prometheus.Counter
}

// New creates a metrics collector registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SpanDoubleEnd: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceweave_span_double_end_total",
			Help: "Spans ended more than once (extra ends are no-ops)",
		}),
		SpanAttrAfterEnd: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceweave_span_attr_after_end_total",
			Help: "Attribute writes rejected because the span was already ended",
		}),
		SpanForcedEnd: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceweave_span_forced_end_total",
			Help: "Child spans force-closed because their parent ended first",
		}),
		ContextMalformed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "traceweave_context_malformed_total",
				Help: "Propagation headers present but undecodable, treated as absent",
			},
			[]string{"header"},
		),
		CarrierUnavailable: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "traceweave_carrier_unavailable_total",
				Help: "Reads against a consumed or closed carrier",
			},
			[]string{"carrier"},
		),
		SanitizeFallback: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceweave_sanitize_fallback_total",
			Help: "Statements returned verbatim after a sanitizer parse failure",
		}),
		SpansExported: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceweave_spans_exported_total",
			Help: "Spans handed to the exporter",
		}),
		SpansDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "traceweave_spans_dropped_total",
			Help: "Spans dropped because the export buffer was full",
		}),
	}
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics collector, registered with the
// default Prometheus registry on first use.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
