package exporter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/traceweave/traceweave/trace"
)

// HTTPExporter posts span batches as JSON to a collector endpoint. Delivery
// retries with backoff via retryablehttp; payloads are gzip-compressed
// unless disabled.
type HTTPExporter struct {
	endpoint string
	client   *retryablehttp.Client
	compress bool
}

var _ BatchExporter = (*HTTPExporter)(nil)

// HTTPOption configures an HTTPExporter.
type HTTPOption func(*HTTPExporter)

// WithoutCompression disables gzip on the request body.
func WithoutCompression() HTTPOption {
	return func(e *HTTPExporter) {
		e.compress = false
	}
}

// WithRetryMax sets the maximum number of retries per batch.
func WithRetryMax(n int) HTTPOption {
	return func(e *HTTPExporter) {
		e.client.RetryMax = n
	}
}

// WithHTTPLogger routes retryablehttp's internal logging to zap.
func WithHTTPLogger(logger *zap.Logger) HTTPOption {
	return func(e *HTTPExporter) {
		e.client.Logger = zap.NewStdLog(logger)
	}
}

// NewHTTP creates an exporter posting to endpoint.
func NewHTTP(endpoint string, opts ...HTTPOption) *HTTPExporter {
	client := retryablehttp.NewClient()
	client.Logger = nil

	e := &HTTPExporter{
		endpoint: endpoint,
		client:   client,
		compress: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// spanWire is the JSON shape of one exported span.
type spanWire struct {
	TraceID       string         `json:"traceId"`
	SpanID        string         `json:"spanId"`
	ParentSpanID  string         `json:"parentSpanId,omitempty"`
	Name          string         `json:"name"`
	Kind          string         `json:"kind"`
	Service       string         `json:"service"`
	StartUnixNano int64          `json:"startUnixNano"`
	EndUnixNano   int64          `json:"endUnixNano"`
	Status        string         `json:"status"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
	Events        []eventWire    `json:"events,omitempty"`
}

type eventWire struct {
	TimeUnixNano int64          `json:"timeUnixNano"`
	Message      string         `json:"message"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// ExportBatch encodes and posts one batch. An HTTP error after retries is
// returned to the processor, which logs it; spans in a failed batch are not
// re-queued.
func (e *HTTPExporter) ExportBatch(ctx context.Context, batch []trace.SpanData) error {
	wire := make([]spanWire, 0, len(batch))
	for _, span := range batch {
		wire = append(wire, toWire(span))
	}

	payload, err := sonic.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode span batch: %w", err)
	}

	body := payload
	if e.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("compress span batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress span batch: %w", err)
		}
		body = buf.Bytes()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, body)
	if err != nil {
		return fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post span batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("collector rejected span batch: %s", resp.Status)
	}
	return nil
}

func toWire(span trace.SpanData) spanWire {
	w := spanWire{
		TraceID:       span.Context.TraceID.String(),
		SpanID:        span.Context.SpanID.String(),
		Name:          span.Name,
		Kind:          span.Kind.String(),
		Service:       span.Service,
		StartUnixNano: span.Start.UnixNano(),
		EndUnixNano:   span.End.UnixNano(),
		Status:        span.Status.String(),
		StatusMessage: span.StatusMessage,
		Attributes:    span.Attributes,
	}
	if span.ParentSpanID.IsValid() {
		w.ParentSpanID = span.ParentSpanID.String()
	}
	for _, ev := range span.Events {
		w.Events = append(w.Events, eventWire{
			TimeUnixNano: ev.Time.UnixNano(),
			Message:      ev.Message,
			Fields:       ev.Fields,
		})
	}
	return w
}
