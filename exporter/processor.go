package exporter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/traceweave/traceweave/internal/monitoring"
	"github.com/traceweave/traceweave/trace"
)

const (
	defaultBufferSize    = 1024
	defaultBatchSize     = 64
	defaultFlushInterval = 5 * time.Second
)

// Processor buffers closed spans and ships them to a BatchExporter in
// batches. Export never blocks: a full buffer drops the span and counts it,
// because the request path outranks telemetry completeness.
type Processor struct {
	sender  BatchExporter
	logger  *zap.Logger
	metrics *monitoring.Metrics

	spans         chan trace.SpanData
	batchSize     int
	flushInterval time.Duration

	// closeMu orders late Export calls against Shutdown closing the
	// channel; a span arriving after shutdown is dropped, never a panic.
	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}
}

var _ trace.Exporter = (*Processor)(nil)

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithBufferSize sets the buffered-channel capacity.
func WithBufferSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.spans = make(chan trace.SpanData, n)
		}
	}
}

// WithBatchSize sets how many spans trigger an immediate flush.
func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets how long a partial batch may sit before flushing.
func WithFlushInterval(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithLogger sets the logger for drop warnings and delivery failures.
func WithLogger(logger *zap.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics overrides the internal counters, used by tests.
func WithMetrics(m *monitoring.Metrics) ProcessorOption {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewProcessor creates a processor delivering to sender and starts its
// worker goroutine.
func NewProcessor(sender BatchExporter, opts ...ProcessorOption) *Processor {
	p := &Processor{
		sender:        sender,
		logger:        zap.NewNop(),
		metrics:       monitoring.Default(),
		spans:         make(chan trace.SpanData, defaultBufferSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.run()
	return p
}

// Export enqueues a span, dropping it if the buffer is full or the
// processor has shut down.
func (p *Processor) Export(span trace.SpanData) {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		p.metrics.SpansDropped.Inc()
		return
	}

	select {
	case p.spans <- span:
	default:
		p.metrics.SpansDropped.Inc()
		p.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", span.Context.TraceID.String()),
			zap.String("span_id", span.Context.SpanID.String()),
		)
	}
}

// Shutdown stops intake, flushes what is buffered and waits for the worker,
// up to ctx's deadline.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.closeMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.spans)
	}
	p.closeMu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]trace.SpanData, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := p.sender.ExportBatch(context.Background(), batch); err != nil {
			p.logger.Warn("span batch delivery failed",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		}
		batch = make([]trace.SpanData, 0, p.batchSize)
	}

	for {
		select {
		case span, ok := <-p.spans:
			if !ok {
				flush()
				return
			}
			batch = append(batch, span)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
