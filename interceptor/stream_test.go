package interceptor_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/interceptor"
	"github.com/nodalrpc/nodal/metadata"
	"github.com/nodalrpc/nodal/status"
	"github.com/nodalrpc/nodal/stream"
)

type fakeStream struct {
	ctx   context.Context
	recvd []any
	sent  []any
}

func (f *fakeStream) Context() context.Context {
	if f.ctx != nil {
		return f.ctx
	}
	return context.Background()
}
func (f *fakeStream) SendHeaders(md metadata.MD) error { return nil }
func (f *fakeStream) Send(msg any) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeStream) Recv(msg any) error         { return io.EOF }
func (f *fakeStream) SetTrailer(md metadata.MD)  {}
func (f *fakeStream) End(s *status.Status) error { return nil }

var _ stream.Handle = (*fakeStream)(nil)

func TestChainStreamServerOrdersOutermostFirst(t *testing.T) {
	var order []string
	mk := func(name string) interceptor.StreamServerInterceptor {
		return func(srv any, ss stream.Handle, info *stream.StreamInfo, next interceptor.StreamHandler) error {
			order = append(order, "pre:"+name)
			err := next(srv, ss)
			order = append(order, "post:"+name)
			return err
		}
	}

	chain := interceptor.ChainStreamServer(mk("a"), mk("b"))
	err := chain(nil, &fakeStream{}, &stream.StreamInfo{}, func(srv any, ss stream.Handle) error {
		order = append(order, "handler")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pre:a", "pre:b", "handler", "post:b", "post:a"}, order)
}

func TestChainStreamServerEmptyCallsHandler(t *testing.T) {
	chain := interceptor.ChainStreamServer()
	called := false
	err := chain(nil, &fakeStream{}, &stream.StreamInfo{}, func(srv any, ss stream.Handle) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestChainStreamClientMirrorsServer(t *testing.T) {
	var order []string
	mk := func(name string) interceptor.StreamClientInterceptor {
		return func(info *stream.StreamInfo, streamer interceptor.Streamer) (stream.Handle, error) {
			order = append(order, name)
			return streamer(info)
		}
	}
	want := &fakeStream{}
	chain := interceptor.ChainStreamClient(mk("a"), mk("b"))
	got, err := chain(&stream.StreamInfo{}, func(info *stream.StreamInfo) (stream.Handle, error) {
		order = append(order, "dial")
		return want, nil
	})
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, []string{"a", "b", "dial"}, order)
}

func TestWrappedServerStreamOverridesRecvSend(t *testing.T) {
	base := &fakeStream{}
	var recvCalls, sendCalls int
	wrapped := &interceptor.WrappedServerStream{
		Handle: base,
		RecvFunc: func(msg any) error {
			recvCalls++
			return nil
		},
		SendFunc: func(msg any) error {
			sendCalls++
			return base.Send(msg)
		},
	}

	require.NoError(t, wrapped.Recv("ignored"))
	require.NoError(t, wrapped.Send("payload"))
	assert.Equal(t, 1, recvCalls)
	assert.Equal(t, 1, sendCalls)
	assert.Equal(t, []any{"payload"}, base.sent)
}

func TestWrappedServerStreamFallsThroughWhenNil(t *testing.T) {
	base := &fakeStream{}
	wrapped := &interceptor.WrappedServerStream{Handle: base}
	require.NoError(t, wrapped.Send("x"))
	assert.Equal(t, []any{"x"}, base.sent)
	err := wrapped.Recv("y")
	assert.ErrorIs(t, err, io.EOF)
}
