// Package gintrace traces inbound HTTP requests handled by gin.
//
// The middleware extracts the caller's trace context from the request
// headers, opens a server span for the handler chain, and echoes the span's
// traceparent on the response so clients can correlate. Handlers reach the
// active span through the request context.
package gintrace

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/traceweave/traceweave/propagation"
	"github.com/traceweave/traceweave/trace"
)

// Middleware returns gin middleware that traces every request.
func Middleware(tracer *trace.Tracer, prop *propagation.Propagator) gin.HandlerFunc {
	return func(c *gin.Context) {
		parent := prop.Extract(propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.StartSpan(c.Request.Context(), spanName(c),
			trace.WithKind(trace.KindServer),
			trace.WithParent(parent),
			trace.WithAttributes(map[string]any{
				"http.method": c.Request.Method,
				"http.url":    c.Request.URL.String(),
				"http.host":   c.Request.Host,
			}),
		)
		c.Request = c.Request.WithContext(ctx)

		// Echo the server span's context so the client can correlate.
		prop.Inject(span.Context(), propagation.HeaderCarrier(c.Writer.Header()))

		c.Next()

		status := c.Writer.Status()
		span.SetAttribute("http.status_code", status)
		switch {
		case len(c.Errors) > 0:
			span.RecordError(c.Errors.Last())
		case status >= 500:
			span.SetStatus(trace.StatusError, fmt.Sprintf("HTTP %d", status))
		default:
			span.SetStatus(trace.StatusOK, "")
		}
		span.End()
	}
}

func spanName(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return c.Request.Method + " " + path
	}
	return c.Request.Method
}
