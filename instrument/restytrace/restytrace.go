// Package restytrace traces outbound HTTP calls made with resty.
//
// Instrument installs hooks on a resty client: before each request a client
// span is opened and its context injected into the request headers; after
// the response, or on transport error, the span is closed with the outcome.
// The span parents under whatever is active in the request's context, so a
// resty call made inside a traced handler joins that handler's trace.
package restytrace

import (
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/traceweave/traceweave/propagation"
	"github.com/traceweave/traceweave/trace"
)

// Instrument installs tracing hooks on client and returns it.
func Instrument(client *resty.Client, tracer *trace.Tracer, prop *propagation.Propagator) *resty.Client {
	client.OnBeforeRequest(func(c *resty.Client, r *resty.Request) error {
		ctx, span := tracer.StartSpan(r.Context(), "HTTP "+r.Method,
			trace.WithKind(trace.KindClient),
			trace.WithAttributes(map[string]any{
				"http.method": r.Method,
				"http.url":    r.URL,
			}),
		)
		prop.Inject(span.Context(), propagation.HeaderCarrier(r.Header))
		r.SetContext(ctx)
		return nil
	})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		span := trace.SpanFromContext(resp.Request.Context())
		if span == nil {
			return nil
		}
		span.SetAttribute("http.status_code", resp.StatusCode())
		if resp.StatusCode() >= 400 {
			span.SetStatus(trace.StatusError, fmt.Sprintf("HTTP %d", resp.StatusCode()))
		} else {
			span.SetStatus(trace.StatusOK, "")
		}
		span.End()
		return nil
	})

	client.OnError(func(r *resty.Request, err error) {
		span := trace.SpanFromContext(r.Context())
		if span == nil {
			return
		}
		// A *resty.ResponseError means OnAfterResponse already closed the
		// span; End is idempotent either way.
		if respErr, ok := err.(*resty.ResponseError); ok && respErr.Response != nil {
			return
		}
		span.RecordError(err)
		span.End()
	})

	return client
}
