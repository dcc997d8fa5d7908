// Package interceptor implements the composition pipeline from spec
// §4.6: unary and streaming interceptors wrapping a handler invocation,
// on both the server and client side, folding a slice right-to-left so
// the first entry in the slice is the outermost wrapper (invariant 5).
package interceptor

import "context"

// UnaryServerInfo carries the per-call information a server-side unary
// interceptor can inspect, mirroring google.golang.org/grpc's
// UnaryServerInfo shape (the naming convention the retrieved corpus
// uses throughout), but independent of grpc-go's types.
type UnaryServerInfo struct {
	FullMethod string
	Server     any
}

// UnaryHandler is the innermost operation a chain of unary server
// interceptors eventually calls: the user's registered method.
type UnaryHandler func(ctx context.Context, req any) (any, error)

// UnaryServerInterceptor is spec §4.6's "(ctx, request, server_info,
// next) -> (ctx', response, status)" shape. An interceptor MUST call
// next at most once.
type UnaryServerInterceptor func(ctx context.Context, req any, info *UnaryServerInfo, next UnaryHandler) (any, error)

// ChainUnaryServer composes interceptors into one, in outermost-first
// order: ChainUnaryServer(a, b, c) behaves as
// a(ctx, req, info, func { b(ctx, req, info, func { c(ctx, req, info, handler) }) }).
// This is the same folding law spec §8 invariant 5 states and the same
// shape as the grpc-middleware-derived ChainUnaryServer found throughout
// the retrieved corpus, reimplemented against nodal's own interceptor
// type.
func ChainUnaryServer(interceptors ...UnaryServerInterceptor) UnaryServerInterceptor {
	n := len(interceptors)
	if n == 0 {
		return func(ctx context.Context, req any, _ *UnaryServerInfo, handler UnaryHandler) (any, error) {
			return handler(ctx, req)
		}
	}
	if n == 1 {
		return interceptors[0]
	}
	return func(ctx context.Context, req any, info *UnaryServerInfo, handler UnaryHandler) (any, error) {
		curr := handler
		for i := n - 1; i > 0; i-- {
			inner, idx := curr, i
			curr = func(ctx context.Context, req any) (any, error) {
				return interceptors[idx](ctx, req, info, inner)
			}
		}
		return interceptors[0](ctx, req, info, curr)
	}
}

// UnaryCallInfo is the client-side analog of UnaryServerInfo from spec
// §4.6 ("Client-side mirrors the contract with server_info replaced by
// call_info").
type UnaryCallInfo struct {
	FullMethod string
}

// UnaryInvoker is the innermost client-side operation: actually sending
// the RPC over a channel.
type UnaryInvoker func(ctx context.Context, req any) (any, error)

// UnaryClientInterceptor is the client-side mirror of
// UnaryServerInterceptor.
type UnaryClientInterceptor func(ctx context.Context, req any, info *UnaryCallInfo, invoker UnaryInvoker) (any, error)

// ChainUnaryClient composes client interceptors the same way
// ChainUnaryServer composes server ones.
func ChainUnaryClient(interceptors ...UnaryClientInterceptor) UnaryClientInterceptor {
	n := len(interceptors)
	if n == 0 {
		return func(ctx context.Context, req any, _ *UnaryCallInfo, invoker UnaryInvoker) (any, error) {
			return invoker(ctx, req)
		}
	}
	if n == 1 {
		return interceptors[0]
	}
	return func(ctx context.Context, req any, info *UnaryCallInfo, invoker UnaryInvoker) (any, error) {
		curr := invoker
		for i := n - 1; i > 0; i-- {
			inner, idx := curr, i
			curr = func(ctx context.Context, req any) (any, error) {
				return interceptors[idx](ctx, req, info, inner)
			}
		}
		return interceptors[0](ctx, req, info, curr)
	}
}
