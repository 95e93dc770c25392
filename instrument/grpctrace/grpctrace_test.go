package grpctrace

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/traceweave/traceweave/internal/monitoring"
	"github.com/traceweave/traceweave/propagation"
	"github.com/traceweave/traceweave/trace"
)

type captureExporter struct {
	mu    sync.Mutex
	spans []trace.SpanData
}

func (c *captureExporter) Export(span trace.SpanData) {
	c.mu.Lock()
	c.spans = append(c.spans, span)
	c.mu.Unlock()
}

func setup(t *testing.T) (*trace.Tracer, *propagation.Propagator, *captureExporter) {
	t.Helper()
	metrics := monitoring.New(prometheus.NewRegistry())
	exp := &captureExporter{}
	tracer := trace.New("grpc-test", trace.WithExporter(exp), trace.WithMetrics(metrics))
	prop := propagation.New(propagation.WithMetrics(metrics))
	return tracer, prop, exp
}

func TestUnaryServerInterceptorContinuesTrace(t *testing.T) {
	tracer, prop, exp := setup(t)
	interceptor := UnaryServerInterceptor(tracer, prop)

	md := metadata.Pairs("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Method"}
	resp, err := interceptor(ctx, "request", info, func(ctx context.Context, req any) (any, error) {
		assert.NotNil(t, trace.SpanFromContext(ctx), "handler sees the server span")
		return "response", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "response", resp)

	require.Len(t, exp.spans, 1)
	span := exp.spans[0]
	assert.Equal(t, "pkg.Service/Method", span.Name)
	assert.Equal(t, trace.KindServer, span.Kind)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.Context.TraceID.String())
	assert.Equal(t, "00f067aa0ba902b7", span.ParentSpanID.String())
	assert.Equal(t, trace.StatusOK, span.Status)
	assert.Equal(t, "grpc", span.Attributes["rpc.system"])
}

func TestUnaryServerInterceptorWithoutMetadata(t *testing.T) {
	tracer, prop, exp := setup(t)
	interceptor := UnaryServerInterceptor(tracer, prop)

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Method"}
	_, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return nil, nil
	})

	require.NoError(t, err)
	require.Len(t, exp.spans, 1)
	assert.False(t, exp.spans[0].ParentSpanID.IsValid(), "no metadata starts a new root")
}

func TestUnaryServerInterceptorRecordsError(t *testing.T) {
	tracer, prop, exp := setup(t)
	interceptor := UnaryServerInterceptor(tracer, prop)

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Method"}
	_, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req any) (any, error) {
		return nil, errors.New("handler failed")
	})

	require.Error(t, err)
	require.Len(t, exp.spans, 1)
	assert.Equal(t, trace.StatusError, exp.spans[0].Status)
	assert.Equal(t, "handler failed", exp.spans[0].StatusMessage)
}

func TestUnaryClientInterceptorInjects(t *testing.T) {
	tracer, prop, exp := setup(t)
	interceptor := UnaryClientInterceptor(tracer, prop)

	var outgoing metadata.MD
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		outgoing, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	err := interceptor(context.Background(), "/pkg.Service/Call", "req", nil, nil, invoker)
	require.NoError(t, err)

	require.Len(t, exp.spans, 1)
	span := exp.spans[0]
	assert.Equal(t, trace.KindClient, span.Kind)

	values := outgoing.Get("traceparent")
	require.Len(t, values, 1)
	extracted := prop.Extract(metadataCarrier(outgoing))
	assert.Equal(t, span.Context.TraceID, extracted.TraceID)
	assert.Equal(t, span.Context.SpanID, extracted.SpanID)
}

func TestClientServerHandoff(t *testing.T) {
	tracer, prop, exp := setup(t)

	// Client side injects; server side on "the other process" extracts.
	var wire metadata.MD
	clientErr := UnaryClientInterceptor(tracer, prop)(
		context.Background(), "/pkg.Service/Call", "req", nil, nil,
		func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			wire, _ = metadata.FromOutgoingContext(ctx)
			return nil
		},
	)
	require.NoError(t, clientErr)

	serverCtx := metadata.NewIncomingContext(context.Background(), wire)
	_, serverErr := UnaryServerInterceptor(tracer, prop)(
		serverCtx, "req",
		&grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Call"},
		func(ctx context.Context, req any) (any, error) { return nil, nil },
	)
	require.NoError(t, serverErr)

	require.Len(t, exp.spans, 2)
	clientSpan, serverSpan := exp.spans[0], exp.spans[1]
	assert.Equal(t, clientSpan.Context.TraceID, serverSpan.Context.TraceID, "one trace across the boundary")
	assert.Equal(t, clientSpan.Context.SpanID, serverSpan.ParentSpanID, "server span is the client span's child")
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context {
	return f.ctx
}

func TestStreamServerInterceptor(t *testing.T) {
	tracer, prop, exp := setup(t)
	interceptor := StreamServerInterceptor(tracer, prop)

	md := metadata.Pairs("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	stream := &fakeServerStream{ctx: metadata.NewIncomingContext(context.Background(), md)}

	info := &grpc.StreamServerInfo{FullMethod: "/pkg.Service/Watch"}
	err := interceptor("srv", stream, info, func(srv any, ss grpc.ServerStream) error {
		assert.NotNil(t, trace.SpanFromContext(ss.Context()), "wrapped stream carries the span")
		return nil
	})

	require.NoError(t, err)
	require.Len(t, exp.spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", exp.spans[0].Context.TraceID.String())
	assert.Equal(t, true, exp.spans[0].Attributes["rpc.streaming"])
}
