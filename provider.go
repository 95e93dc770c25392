// Package traceweave wires the tracing core together from process-wide
// configuration: one tracer, one propagator, one sanitizer and one export
// pipeline, built once at startup and shared read-only afterwards.
//
// Instrumentation adapters for specific transports live under instrument/;
// they only need the Tracer and Propagator from here.
package traceweave

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/traceweave/traceweave/config"
	"github.com/traceweave/traceweave/exporter"
	"github.com/traceweave/traceweave/internal/logging"
	"github.com/traceweave/traceweave/propagation"
	"github.com/traceweave/traceweave/request"
	"github.com/traceweave/traceweave/sanitize"
	"github.com/traceweave/traceweave/trace"
)

// Provider owns the configured tracing components and their shutdown.
type Provider struct {
	Tracer     *trace.Tracer
	Propagator *propagation.Propagator
	Sanitizer  *sanitize.Sanitizer

	logger    *zap.Logger
	processor *exporter.Processor
}

// New builds a provider from cfg. Configuration problems are the only
// errors this package ever returns; afterwards every component follows the
// recover-locally policy.
func New(cfg *config.Config) (*Provider, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracing config rejected: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("tracing logger: %w", err)
	}

	var sender exporter.BatchExporter
	if cfg.Exporter.Endpoint != "" {
		var httpOpts []exporter.HTTPOption
		if !cfg.Exporter.Compression {
			httpOpts = append(httpOpts, exporter.WithoutCompression())
		}
		sender = exporter.NewHTTP(cfg.Exporter.Endpoint, httpOpts...)
	} else {
		sender = exporter.NewLogExporter(logger)
	}

	processor := exporter.NewProcessor(sender,
		exporter.WithBufferSize(cfg.Exporter.BufferSize),
		exporter.WithBatchSize(cfg.Exporter.BatchSize),
		exporter.WithFlushInterval(cfg.Exporter.FlushInterval),
		exporter.WithLogger(logger),
	)

	return &Provider{
		Tracer:     trace.New(cfg.Service.Name, trace.WithLogger(logger), trace.WithExporter(processor)),
		Propagator: propagation.New(propagation.WithLogger(logger)),
		Sanitizer:  sanitize.New(cfg.Sanitize.StatementsEnabled),
		logger:     logger,
		processor:  processor,
	}, nil
}

// DescribeStatement sanitizes a captured statement and builds the request
// descriptor a database or queue span is tagged with.
func (p *Provider) DescribeStatement(host string, port int, logicalName, statement string) request.Descriptor {
	return request.Build(host, port, logicalName, p.Sanitizer.Sanitize(statement))
}

// Shutdown flushes buffered spans and stops the export pipeline.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.processor.Shutdown(ctx)
}
