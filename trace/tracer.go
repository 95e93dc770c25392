package trace

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/traceweave/traceweave/internal/monitoring"
)

// Exporter receives closed spans. The tracer's obligation ends at the
// handoff: batching, retry and backoff live behind this interface.
type Exporter interface {
	Export(span SpanData)
}

// Tracer creates spans and correlates them into traces. Safe for concurrent
// use; a process typically holds one per instrumented service.
type Tracer struct {
	service  string
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	exporter Exporter
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithLogger sets the logger used for the tracer's own diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithExporter sets the destination for closed spans. Without one, closed
// spans are logged and discarded.
func WithExporter(exp Exporter) Option {
	return func(t *Tracer) {
		if exp != nil {
			t.exporter = exp
		}
	}
}

// WithMetrics overrides the internal counters, used by tests to observe the
// error policy without the process-wide registry.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(t *Tracer) {
		if m != nil {
			t.metrics = m
		}
	}
}

// New creates a tracer for the named service.
func New(service string, opts ...Option) *Tracer {
	t := &Tracer{
		service: service,
		logger:  zap.NewNop(),
		metrics: monitoring.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartOption configures one StartSpan call.
type StartOption func(*startConfig)

type startConfig struct {
	kind   Kind
	parent SpanContext
	attrs  map[string]any
}

// WithKind sets the span kind, KindInternal by default.
func WithKind(kind Kind) StartOption {
	return func(c *startConfig) {
		c.kind = kind
	}
}

// WithParent links the span under a remote context decoded from an inbound
// carrier. An invalid context is ignored and resolution falls through to the
// ambient span.
func WithParent(parent SpanContext) StartOption {
	return func(c *startConfig) {
		c.parent = parent
	}
}

// WithAttributes sets initial attributes on the span.
func WithAttributes(attrs map[string]any) StartOption {
	return func(c *startConfig) {
		c.attrs = attrs
	}
}

// StartSpan creates a span and returns a context carrying it as the ambient
// span. It never fails: an unusable parent silently produces a root span.
//
// Parent resolution: an explicit valid WithParent context wins; otherwise
// the ambient span in ctx; otherwise the span is a root on a fresh trace.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...StartOption) (context.Context, *Span) {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	span := &Span{
		tracer:   t,
		name:     name,
		kind:     cfg.kind,
		start:    time.Now(),
		finished: make(chan struct{}),
	}
	if cfg.attrs != nil {
		span.attrs = make(map[string]any, len(cfg.attrs))
		for k, v := range cfg.attrs {
			span.attrs[k] = v
		}
	}

	switch {
	case cfg.parent.IsValid():
		// Continuation across a process boundary or explicit handoff.
		span.ctx = SpanContext{
			TraceID: cfg.parent.TraceID,
			SpanID:  NewSpanID(),
			Sampled: cfg.parent.Sampled,
			State:   cfg.parent.State,
		}
		span.parentID = cfg.parent.SpanID
	case SpanFromContext(ctx) != nil:
		// Intra-process nesting under the ambient span.
		parent := SpanFromContext(ctx)
		parentCtx := parent.Context()
		span.ctx = SpanContext{
			TraceID: parentCtx.TraceID,
			SpanID:  NewSpanID(),
			Sampled: parentCtx.Sampled,
			State:   parentCtx.State,
		}
		span.parentID = parentCtx.SpanID
		span.parent = parent
		parent.addChild(span)
	default:
		// New root, new trace.
		span.ctx = SpanContext{
			TraceID: NewTraceID(),
			SpanID:  NewSpanID(),
			Sampled: true,
		}
	}

	return ContextWithSpan(ctx, span), span
}

// WithSpan runs fn inside a span: the span is active for the duration of fn,
// a returned error is recorded, and the span always ends, panics included.
func (t *Tracer) WithSpan(ctx context.Context, name string, fn func(context.Context) error, opts ...StartOption) error {
	ctx, span := t.StartSpan(ctx, name, opts...)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	span.SetStatus(StatusOK, "")
	return nil
}

// finish hands a closed span to the exporter.
func (t *Tracer) finish(s *Span) {
	t.metrics.SpansExported.Inc()
	data := s.snapshot()
	if t.exporter != nil {
		t.exporter.Export(data)
		return
	}
	t.logger.Debug("span completed",
		zap.String("trace_id", data.Context.TraceID.String()),
		zap.String("span_id", data.Context.SpanID.String()),
		zap.String("operation", data.Name),
		zap.Duration("duration", data.Duration()),
	)
}

// Context key for the ambient span.
type contextKey struct{}

var activeSpanKey contextKey

// ContextWithSpan returns a context with span as the ambient span. Callbacks
// scheduled onto other goroutines must carry this context; that is the
// handoff the correlation rules depend on.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, activeSpanKey, span)
}

// SpanFromContext returns the ambient span, or nil if none is active.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(activeSpanKey).(*Span)
	return span
}

// SpanContextFromContext returns the ambient span's propagated identity, or
// the zero (absent) context if no span is active.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if span := SpanFromContext(ctx); span != nil {
		return span.Context()
	}
	return SpanContext{}
}
