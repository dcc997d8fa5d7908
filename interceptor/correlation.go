package interceptor

import (
	"context"

	"github.com/google/uuid"

	"github.com/nodalrpc/nodal/callctx"
	"github.com/nodalrpc/nodal/metadata"
	"github.com/nodalrpc/nodal/stream"
)

// CorrelationIDKey is the metadata key a correlation-ID interceptor
// reads from incoming metadata and stamps onto outgoing metadata,
// generating a fresh one when the caller didn't send one.
const CorrelationIDKey = "x-correlation-id"

type correlationIDKey struct{}

// CorrelationID returns the correlation ID attached to ctx by
// UnaryServerCorrelationID/StreamServerCorrelationID, or "" if none.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

func correlationIDFor(md metadata.MD) string {
	if vs := md.Get(CorrelationIDKey); len(vs) > 0 && vs[0] != "" {
		return vs[0]
	}
	return uuid.NewString()
}

// UnaryServerCorrelationID propagates a correlation ID across a call: it
// reads CorrelationIDKey from incoming metadata, generating one with
// google/uuid if absent, makes it available via CorrelationID, and
// appends it to ctx's outbound metadata builder via
// callctx.AppendOutgoing. Package server attaches no such builder, so
// under package server the ID is not echoed back to the caller.
func UnaryServerCorrelationID() UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *UnaryServerInfo, next UnaryHandler) (any, error) {
		id := correlationIDFor(callctx.Incoming(ctx))
		ctx = context.WithValue(ctx, correlationIDKey{}, id)
		_ = callctx.AppendOutgoing(ctx, CorrelationIDKey, id)
		return next(ctx, req)
	}
}

// contextStream wraps a stream.Handle to substitute the Context it
// returns, since interceptors may only extend a call's context before
// the stream is handed to the handler, not mutate the Handle's own copy.
type contextStream struct {
	stream.Handle
	ctx context.Context
}

func (c *contextStream) Context() context.Context { return c.ctx }

// StreamServerCorrelationID is the streaming analog of
// UnaryServerCorrelationID, wrapping the stream so Context() carries the
// correlation ID for the lifetime of the call.
func StreamServerCorrelationID() StreamServerInterceptor {
	return func(srv any, ss stream.Handle, info *stream.StreamInfo, next StreamHandler) error {
		id := correlationIDFor(callctx.Incoming(ss.Context()))
		ctx := context.WithValue(ss.Context(), correlationIDKey{}, id)
		_ = callctx.AppendOutgoing(ctx, CorrelationIDKey, id)
		return next(srv, &contextStream{Handle: ss, ctx: ctx})
	}
}

// UnaryClientCorrelationID is the client-side counterpart: it stamps a
// fresh correlation ID (or reuses one already attached to ctx via
// CorrelationID, e.g. a handler forwarding a call it received) onto the
// outbound metadata before the request goes out.
func UnaryClientCorrelationID() UnaryClientInterceptor {
	return func(ctx context.Context, req any, info *UnaryCallInfo, invoker UnaryInvoker) (any, error) {
		id := CorrelationID(ctx)
		if id == "" {
			id = uuid.NewString()
		}
		_ = callctx.AppendOutgoing(ctx, CorrelationIDKey, id)
		return invoker(ctx, req)
	}
}
