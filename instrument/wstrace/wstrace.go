// Package wstrace propagates trace context across websocket handshakes.
//
// A websocket upgrade is an HTTP exchange, so the handshake headers are the
// carrier: Dial injects the client span's context into the handshake
// request, Upgrade extracts it on the accepting side and opens a server span
// covering the connection's lifetime. The caller ends the server span when
// the connection closes; message traffic itself is not spanned.
package wstrace

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/traceweave/traceweave/propagation"
	"github.com/traceweave/traceweave/trace"
)

// Dial opens a traced websocket connection. The handshake is wrapped in a
// client span that ends when the handshake completes or fails.
func Dial(ctx context.Context, dialer *websocket.Dialer, tracer *trace.Tracer, prop *propagation.Propagator, url string, requestHeader http.Header) (*websocket.Conn, *http.Response, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if requestHeader == nil {
		requestHeader = http.Header{}
	}

	ctx, span := tracer.StartSpan(ctx, "WS CONNECT",
		trace.WithKind(trace.KindClient),
		trace.WithAttributes(map[string]any{"http.url": url}),
	)
	defer span.End()

	prop.Inject(span.Context(), propagation.HeaderCarrier(requestHeader))

	conn, resp, err := dialer.DialContext(ctx, url, requestHeader)
	if err != nil {
		span.RecordError(err)
		return nil, resp, err
	}
	span.SetStatus(trace.StatusOK, "")
	return conn, resp, nil
}

// Upgrade accepts a traced websocket connection. The returned span covers
// the connection and is parented under the dialer's handshake span when the
// request carried one; the caller must End it when the connection closes,
// typically in the same defer that closes the conn.
func Upgrade(upgrader *websocket.Upgrader, tracer *trace.Tracer, prop *propagation.Propagator, w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*websocket.Conn, context.Context, *trace.Span, error) {
	parent := prop.Extract(propagation.HeaderCarrier(r.Header))

	ctx, span := tracer.StartSpan(r.Context(), "WS "+r.URL.Path,
		trace.WithKind(trace.KindServer),
		trace.WithParent(parent),
		trace.WithAttributes(map[string]any{
			"http.host": r.Host,
			"http.url":  r.URL.String(),
		}),
	)

	conn, err := upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, nil, nil, err
	}
	return conn, ctx, span, nil
}
