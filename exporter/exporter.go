package exporter

import (
	"context"

	"go.uber.org/zap"

	"github.com/traceweave/traceweave/trace"
)

// BatchExporter delivers batches of closed spans to a backend.
type BatchExporter interface {
	ExportBatch(ctx context.Context, batch []trace.SpanData) error
}

// LogExporter writes closed spans to a zap logger, one entry per span.
// Useful in development and as the default destination when no collector is
// configured.
type LogExporter struct {
	logger *zap.Logger
}

var _ trace.Exporter = (*LogExporter)(nil)
var _ BatchExporter = (*LogExporter)(nil)

// NewLogExporter creates a log exporter.
func NewLogExporter(logger *zap.Logger) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogExporter{logger: logger}
}

// Export logs a single span.
func (e *LogExporter) Export(span trace.SpanData) {
	fields := []zap.Field{
		zap.String("trace_id", span.Context.TraceID.String()),
		zap.String("span_id", span.Context.SpanID.String()),
		zap.String("operation", span.Name),
		zap.String("kind", span.Kind.String()),
		zap.String("service", span.Service),
		zap.Duration("duration", span.Duration()),
	}
	if span.ParentSpanID.IsValid() {
		fields = append(fields, zap.String("parent_span_id", span.ParentSpanID.String()))
	}

	if span.Status == trace.StatusError {
		fields = append(fields, zap.String("status_message", span.StatusMessage))
		e.logger.Error("span completed with error", fields...)
		return
	}
	e.logger.Info("span completed", fields...)
}

// ExportBatch logs every span in the batch.
func (e *LogExporter) ExportBatch(_ context.Context, batch []trace.SpanData) error {
	for _, span := range batch {
		e.Export(span)
	}
	return nil
}
