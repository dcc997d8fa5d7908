package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/call"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/stream"
)

type echoServer struct{}

func TestBuilderRegistersUnaryAndStreamPaths(t *testing.T) {
	b := registry.NewBuilder()
	err := b.Register(&registry.ServiceDesc{
		ServiceName: "nodal.test.Echo",
		Methods: []registry.MethodDesc{
			{
				MethodName: "Say",
				Handler: func(ctx context.Context, srv any, req any) (any, error) {
					return req, nil
				},
			},
		},
		Streams: []registry.StreamDesc{
			{
				StreamName:    "Chat",
				ClientStreams: true,
				ServerStreams: true,
				Handler: func(srv any, ss stream.Handle) error {
					return nil
				},
			},
		},
	}, &echoServer{})
	require.NoError(t, err)

	reg := b.Build()

	unary, ok := reg.Lookup("/nodal.test.Echo/Say")
	require.True(t, ok)
	assert.Equal(t, call.Unary, unary.Shape)
	assert.NotNil(t, unary.Unary)

	bidi, ok := reg.Lookup("/nodal.test.Echo/Chat")
	require.True(t, ok)
	assert.Equal(t, call.BidiStream, bidi.Shape)
	assert.NotNil(t, bidi.Stream)

	_, ok = reg.Lookup("/nodal.test.Echo/Missing")
	assert.False(t, ok)
}

func TestBuilderRejectsDuplicateMethod(t *testing.T) {
	b := registry.NewBuilder()
	desc := &registry.ServiceDesc{
		ServiceName: "nodal.test.Echo",
		Methods: []registry.MethodDesc{
			{MethodName: "Say", Handler: func(ctx context.Context, srv, req any) (any, error) { return req, nil }},
		},
	}
	require.NoError(t, b.Register(desc, &echoServer{}))
	err := b.Register(desc, &echoServer{})
	assert.Error(t, err)
}

func TestShapeOfClientStreamOnly(t *testing.T) {
	b := registry.NewBuilder()
	require.NoError(t, b.Register(&registry.ServiceDesc{
		ServiceName: "nodal.test.Echo",
		Streams: []registry.StreamDesc{
			{StreamName: "Upload", ClientStreams: true},
		},
	}, &echoServer{}))
	reg := b.Build()
	e, ok := reg.Lookup("/nodal.test.Echo/Upload")
	require.True(t, ok)
	assert.Equal(t, call.ClientStream, e.Shape)
}
