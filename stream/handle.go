// Package stream implements the Stream Handle from spec §3/§4.4: the
// per-call object handlers and clients use to send/receive messages and
// metadata. It is exclusive to one Call (spec §3's ownership note) and
// safe for one concurrent send plus one concurrent recv, never two
// concurrent sends.
package stream

import (
	"context"

	"github.com/nodalrpc/nodal/metadata"
	"github.com/nodalrpc/nodal/status"
)

// Handle is the operation set from spec §4.4. Package server provides
// the concrete server-side Handle; package channel has no client-side
// Handle and offers unary calls only (Channel.Invoke).
type Handle interface {
	// Context returns the context bound to this stream's Call,
	// carrying incoming metadata and the deadline/cancellation derived
	// from grpc-timeout.
	Context() context.Context
	// SendHeaders writes initial metadata exactly once. Calling it more
	// than once, or after the first message/trailer, is a programmer
	// error surfaced as INTERNAL.
	SendHeaders(md metadata.MD) error
	// Send encodes, frames, and writes one message. It blocks on
	// transport flow-control back-pressure.
	Send(msg any) error
	// Recv waits for the next message, decoding it into msg, or for
	// end-of-stream, returning io.EOF for a clean end-of-stream.
	Recv(msg any) error
	// SetTrailer buffers trailer metadata until End is called.
	SetTrailer(md metadata.MD)
	// End writes the terminal status (and, on the server, the buffered
	// trailer metadata). It is terminal: no further Send/Recv may
	// follow.
	End(s *status.Status) error
}

// ServerStream is an alias for Handle, the full operation set a
// streaming server interceptor sees and may wrap (spec §4.6: "the
// interceptor may wrap the stream to intercept recv/send").
type ServerStream = Handle

// StreamInfo describes the RPC a streaming interceptor is wrapping,
// mirroring google.golang.org/grpc's StreamServerInfo naming.
type StreamInfo struct {
	FullMethod     string
	IsClientStream bool
	IsServerStream bool
}
