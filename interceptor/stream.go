package interceptor

import (
	"github.com/nodalrpc/nodal/stream"
)

// StreamHandler is the operation a streaming interceptor chain
// eventually invokes: the user's registered streaming method, given a
// (possibly wrapped) stream.Handle.
type StreamHandler func(srv any, ss stream.Handle) error

// StreamServerInterceptor is spec §4.6's "(server_info, stream, next) ->
// status" shape.
type StreamServerInterceptor func(srv any, ss stream.Handle, info *stream.StreamInfo, next StreamHandler) error

// ChainStreamServer composes streaming interceptors outermost-first, the
// same folding law as ChainUnaryServer.
func ChainStreamServer(interceptors ...StreamServerInterceptor) StreamServerInterceptor {
	n := len(interceptors)
	if n == 0 {
		return func(srv any, ss stream.Handle, _ *stream.StreamInfo, handler StreamHandler) error {
			return handler(srv, ss)
		}
	}
	if n == 1 {
		return interceptors[0]
	}
	return func(srv any, ss stream.Handle, info *stream.StreamInfo, handler StreamHandler) error {
		curr := handler
		for i := n - 1; i > 0; i-- {
			inner, idx := curr, i
			curr = func(srv any, ss stream.Handle) error {
				return interceptors[idx](srv, ss, info, inner)
			}
		}
		return interceptors[0](srv, ss, info, curr)
	}
}

// Streamer is the innermost client-side operation: actually creating a
// client stream over a channel.
type Streamer func(info *stream.StreamInfo) (stream.Handle, error)

// StreamClientInterceptor mirrors StreamServerInterceptor on the client,
// wrapping stream creation rather than a single call.
type StreamClientInterceptor func(info *stream.StreamInfo, streamer Streamer) (stream.Handle, error)

// ChainStreamClient composes client streaming interceptors the same way
// ChainStreamServer composes server ones.
func ChainStreamClient(interceptors ...StreamClientInterceptor) StreamClientInterceptor {
	n := len(interceptors)
	if n == 0 {
		return func(info *stream.StreamInfo, streamer Streamer) (stream.Handle, error) {
			return streamer(info)
		}
	}
	if n == 1 {
		return interceptors[0]
	}
	return func(info *stream.StreamInfo, streamer Streamer) (stream.Handle, error) {
		curr := streamer
		for i := n - 1; i > 0; i-- {
			inner, idx := curr, i
			curr = func(info *stream.StreamInfo) (stream.Handle, error) {
				return interceptors[idx](info, inner)
			}
		}
		return interceptors[0](info, curr)
	}
}

// WrappedServerStream is an embeddable stream.Handle decorator that lets
// an interceptor override only the operations it cares about (typically
// Send/Recv), per spec §4.6's "the interceptor may wrap the stream to
// intercept recv/send" -- the same pattern as grpc-middleware's
// WrappedServerStream, reimplemented against nodal's stream.Handle.
type WrappedServerStream struct {
	stream.Handle
	RecvFunc func(msg any) error
	SendFunc func(msg any) error
}

// Recv implements stream.Handle, delegating to RecvFunc when set.
func (w *WrappedServerStream) Recv(msg any) error {
	if w.RecvFunc != nil {
		return w.RecvFunc(msg)
	}
	return w.Handle.Recv(msg)
}

// Send implements stream.Handle, delegating to SendFunc when set.
func (w *WrappedServerStream) Send(msg any) error {
	if w.SendFunc != nil {
		return w.SendFunc(msg)
	}
	return w.Handle.Send(msg)
}

var _ stream.Handle = (*WrappedServerStream)(nil)
