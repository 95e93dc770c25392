// Package grpctrace traces gRPC calls and propagates trace context through
// request metadata.
//
// Server interceptors extract the caller's context from incoming metadata
// and open a server span around the handler; the client interceptor opens a
// client span and injects its context into outgoing metadata.
package grpctrace

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/traceweave/traceweave/propagation"
	"github.com/traceweave/traceweave/trace"
)

// metadataCarrier adapts metadata.MD to the carrier contract. gRPC metadata
// keys are lowercase on the wire; Get and Set normalize accordingly.
type metadataCarrier metadata.MD

var _ propagation.TextMapCarrier = metadataCarrier{}

func (c metadataCarrier) Get(key string) string {
	values := metadata.MD(c).Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (c metadataCarrier) Set(key, value string) {
	metadata.MD(c).Set(key, value)
}

func (c metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// UnaryServerInterceptor traces unary server calls.
func UnaryServerInterceptor(tracer *trace.Tracer, prop *propagation.Propagator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, span := startServerSpan(ctx, tracer, prop, info.FullMethod)

		resp, err := handler(ctx, req)

		finishRPCSpan(span, err)
		return resp, err
	}
}

// StreamServerInterceptor traces streaming server calls, carrying the span
// on the stream's context.
func StreamServerInterceptor(tracer *trace.Tracer, prop *propagation.Propagator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, span := startServerSpan(ss.Context(), tracer, prop, info.FullMethod)
		span.SetAttribute("rpc.streaming", true)

		err := handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})

		finishRPCSpan(span, err)
		return err
	}
}

// UnaryClientInterceptor traces unary client calls and injects the span
// context into outgoing metadata.
func UnaryClientInterceptor(tracer *trace.Tracer, prop *propagation.Propagator) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, span := tracer.StartSpan(ctx, method,
			trace.WithKind(trace.KindClient),
			trace.WithAttributes(map[string]any{
				"rpc.system": "grpc",
				"rpc.method": method,
			}),
		)

		md, ok := metadata.FromOutgoingContext(ctx)
		if ok {
			md = md.Copy()
		} else {
			md = metadata.New(nil)
		}
		prop.Inject(span.Context(), metadataCarrier(md))
		ctx = metadata.NewOutgoingContext(ctx, md)

		err := invoker(ctx, method, req, reply, cc, opts...)

		finishRPCSpan(span, err)
		return err
	}
}

// tracedServerStream overrides Context so the handler sees the span.
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}

func startServerSpan(ctx context.Context, tracer *trace.Tracer, prop *propagation.Propagator, method string) (context.Context, *trace.Span) {
	var parent trace.SpanContext
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		parent = prop.Extract(metadataCarrier(md))
	}

	return tracer.StartSpan(ctx, spanName(method),
		trace.WithKind(trace.KindServer),
		trace.WithParent(parent),
		trace.WithAttributes(map[string]any{
			"rpc.system": "grpc",
			"rpc.method": method,
		}),
	)
}

func finishRPCSpan(span *trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	} else {
		span.SetStatus(trace.StatusOK, "")
	}
	span.End()
}

func spanName(fullMethod string) string {
	return strings.TrimPrefix(fullMethod, "/")
}
