package channel_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/channel"
	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/internal/exampleservice"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/resolver"
	"github.com/nodalrpc/nodal/server"
	"github.com/nodalrpc/nodal/transport"
)

func TestChannelInvokeUnaryRoundTrip(t *testing.T) {
	builder := registry.NewBuilder()
	desc, srv := exampleservice.NewServiceDesc(&exampleservice.Echo{})
	require.NoError(t, builder.Register(desc, srv))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := server.New(builder.Build(), server.Config{})
	go func() { _ = s.Serve(lis) }()
	defer s.Shutdown(context.Background())

	ch := channel.New(channel.Config{
		Name:      "test",
		Target:    lis.Addr().String(),
		Resolver:  resolver.Static{Endpoints: []resolver.Endpoint{{Address: lis.Addr().String()}}},
		Transport: transport.ClientTransportConfig{Insecure: true},
		SyncStart: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ch.Start(ctx))
	defer ch.Stop()

	req := &exampleservice.EchoRequest{Message: "round trip"}
	var resp exampleservice.EchoResponse
	jc := codec.JSONMessageCodec{}
	mc := channel.MethodCodec{Encode: jc.Marshal, Decode: jc.Unmarshal}
	err = ch.Invoke(ctx, "/nodal.example.Echo/Say", req, &resp, mc)
	require.NoError(t, err)
	assert.Equal(t, "round trip", resp.Message)
}

func TestChannelIsReadyFalseBeforeStart(t *testing.T) {
	ch := channel.New(channel.Config{Name: "idle", Target: "unused"})
	assert.False(t, ch.IsReady())
}
