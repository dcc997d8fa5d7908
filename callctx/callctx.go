// Package callctx implements the per-call Context contract from spec
// §3/§4.10: a deadline, a cancellation signal, inbound metadata, an
// outbound metadata builder, and arbitrary user values, all built on top
// of the standard library's context.Context rather than reinventing
// cancellation propagation -- the same approach the teacher takes,
// carrying google.golang.org/grpc/metadata-shaped values through
// context.Context, generalized here to nodal's own ordered metadata.MD.
package callctx

import (
	"context"
	"time"

	"github.com/nodalrpc/nodal/metadata"
)

type incomingKey struct{}
type outgoingKey struct{}
type hashKeyKey struct{}

// WithIncoming returns a context carrying md as the inbound metadata for
// the current call. Handlers read it back with Incoming.
func WithIncoming(ctx context.Context, md metadata.MD) context.Context {
	return context.WithValue(ctx, incomingKey{}, md)
}

// Incoming returns the inbound metadata attached by WithIncoming, or a
// zero MD if none was attached.
func Incoming(ctx context.Context) metadata.MD {
	md, _ := ctx.Value(incomingKey{}).(metadata.MD)
	return md
}

// outgoingBuilder is a mutable pointer cell so that repeated calls to
// AppendOutgoing from deep in a call chain accumulate into the same
// outbound metadata the stream handle will send as initial metadata.
type outgoingBuilder struct {
	md metadata.MD
}

// WithOutgoing attaches a fresh, empty outbound metadata builder to ctx.
// Package channel's Invoke calls this once per call and sends the
// builder's contents as request headers; package server's dispatcher
// does not attach one, so AppendOutgoing is a no-op inside server
// handlers. AppendOutgoing and Outgoing operate on whatever builder is
// present on ctx.
func WithOutgoing(ctx context.Context) context.Context {
	return context.WithValue(ctx, outgoingKey{}, &outgoingBuilder{})
}

// AppendOutgoing appends a key/value pair to the call's outbound
// metadata builder. It is a no-op if ctx carries no builder (e.g. a
// context not derived from a call).
func AppendOutgoing(ctx context.Context, key, value string) error {
	b, ok := ctx.Value(outgoingKey{}).(*outgoingBuilder)
	if !ok {
		return nil
	}
	return b.md.Append(key, value)
}

// Outgoing returns a snapshot of the call's outbound metadata builder.
func Outgoing(ctx context.Context) metadata.MD {
	b, ok := ctx.Value(outgoingKey{}).(*outgoingBuilder)
	if !ok {
		return metadata.MD{}
	}
	return b.md.Clone()
}

// WithHashKey attaches the key the channel's "hash" balancer should use
// to pick a subchannel for this call (see package balancer).
func WithHashKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, hashKeyKey{}, key)
}

// HashKey returns the key attached by WithHashKey, or "" if none.
func HashKey(ctx context.Context) string {
	k, _ := ctx.Value(hashKeyKey{}).(string)
	return k
}

// WithTimeout parses a grpc-timeout header value (decimal integer plus a
// unit suffix H|M|S|m|u|n, per spec §4.3) and derives a context whose
// deadline is min(parent deadline, now+timeout), same as
// context.WithTimeout's standard "earliest wins" composition.
func WithTimeout(parent context.Context, grpcTimeout string) (context.Context, context.CancelFunc, error) {
	d, err := ParseTimeout(grpcTimeout)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, cancel, nil
}

// DeadlineExceeded reports whether ctx's deadline, if any, has passed.
func DeadlineExceeded(ctx context.Context) bool {
	d, ok := ctx.Deadline()
	return ok && time.Now().After(d)
}
