package interceptor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/nodalrpc/nodal/callctx"
	"github.com/nodalrpc/nodal/status"
	"github.com/nodalrpc/nodal/stream"
)

// carrier adapts callctx's incoming/outgoing metadata to
// propagation.TextMapCarrier so a standard otel propagator (typically
// W3C traceparent/tracestate) can extract/inject across a call boundary
// without nodal's metadata package depending on otel.
type carrier struct {
	ctx context.Context
}

func (c carrier) Get(key string) string {
	vs := callctx.Incoming(c.ctx).Get(key)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func (c carrier) Set(key, value string) {
	_ = callctx.AppendOutgoing(c.ctx, key, value)
}

func (c carrier) Keys() []string {
	return callctx.Incoming(c.ctx).Keys()
}

// UnaryServerTracing extracts a parent span context from incoming
// metadata (via the otel global TextMapPropagator, normally W3C trace
// context) and starts a server span around the handler, recording the
// call's final status the way go.opentelemetry.io/otel/trace's own gRPC
// instrumentation does.
func UnaryServerTracing(tracer trace.Tracer) UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *UnaryServerInfo, next UnaryHandler) (any, error) {
		ctx = otel.GetTextMapPropagator().Extract(ctx, carrier{ctx: ctx})
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		resp, err := next(ctx, req)
		recordStatus(span, status.FromError(err))
		return resp, err
	}
}

// StreamServerTracing is the streaming analog of UnaryServerTracing,
// spanning the handler's whole lifetime.
func StreamServerTracing(tracer trace.Tracer) StreamServerInterceptor {
	return func(srv any, ss stream.Handle, info *stream.StreamInfo, next StreamHandler) error {
		ctx := otel.GetTextMapPropagator().Extract(ss.Context(), carrier{ctx: ss.Context()})
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.Bool("nodal.client_stream", info.IsClientStream),
				attribute.Bool("nodal.server_stream", info.IsServerStream)))
		defer span.End()

		err := next(srv, &contextStream{Handle: ss, ctx: ctx})
		recordStatus(span, status.FromError(err))
		return err
	}
}

// UnaryClientTracing starts a client span around the outbound call and
// injects it into outgoing metadata via the otel global
// TextMapPropagator, so the server's extraction in UnaryServerTracing
// picks up the same trace.
func UnaryClientTracing(tracer trace.Tracer) UnaryClientInterceptor {
	return func(ctx context.Context, req any, info *UnaryCallInfo, invoker UnaryInvoker) (any, error) {
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		otel.GetTextMapPropagator().Inject(ctx, carrier{ctx: ctx})
		resp, err := invoker(ctx, req)
		recordStatus(span, status.FromError(err))
		return resp, err
	}
}

func recordStatus(span trace.Span, s *status.Status) {
	span.SetAttributes(attribute.String("nodal.code", s.Code().String()))
	if s.Code().String() != "OK" {
		span.SetStatus(codes.Error, s.Message())
	}
}
