// Command nodal-client calls the bundled example service's Say method
// against a running nodal-server, for manual smoke testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/nodalrpc/nodal/channel"
	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/interceptor"
	"github.com/nodalrpc/nodal/internal/exampleservice"
	"github.com/nodalrpc/nodal/resolver"
	"github.com/nodalrpc/nodal/transport"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8443", "server address")
	message := flag.String("message", "hello, nodal", "message to echo")
	insecure := flag.Bool("insecure", true, "dial without TLS (h2c)")
	flag.Parse()

	if err := run(*addr, *message, *insecure); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, message string, insecure bool) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("nodal-client")

	ch := channel.New(channel.Config{
		Name:      "nodal-client",
		Target:    addr,
		Resolver:  resolver.Static{Endpoints: []resolver.Endpoint{{Address: addr}}},
		Transport: transport.ClientTransportConfig{Insecure: insecure},
		SyncStart: true,
		UnaryInterceptors: []interceptor.UnaryClientInterceptor{
			interceptor.UnaryClientCorrelationID(),
			interceptor.UnaryClientTracing(tracer),
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ch.Start(ctx); err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer ch.Stop()

	jc := codec.JSONMessageCodec{}
	req := &exampleservice.EchoRequest{Message: message}
	var resp exampleservice.EchoResponse
	err := ch.Invoke(ctx, "/nodal.example.Echo/Say", req, &resp, channel.MethodCodec{
		Encode: jc.Marshal,
		Decode: jc.Unmarshal,
	})
	if err != nil {
		return err
	}

	fmt.Println(resp.Message)
	return nil
}
