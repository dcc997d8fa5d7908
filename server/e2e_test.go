package server_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/frame"
	"github.com/nodalrpc/nodal/internal/exampleservice"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/server"
	"github.com/nodalrpc/nodal/transport"
)

// multiFrameBody frames each of msgs as its own length-prefixed message
// into one request body, the shape a real client-streaming/bidi caller
// sends over a single HTTP/2 request stream.
func multiFrameBody(t *testing.T, msgs ...any) *bytes.Buffer {
	t.Helper()
	var body bytes.Buffer
	fw := frame.NewWriter(&body, codec.Identity{})
	for _, m := range msgs {
		b, err := codec.JSONMessageCodec{}.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, fw.Write(b))
	}
	return &body
}

func streamRequest(t *testing.T, client *http.Client, addr, path string, body *bytes.Buffer) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+path, body)
	require.NoError(t, err)
	req.Header.Set("content-type", "application/grpc+proto")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

// TestClientStreamUpload drives scenario 3 (client streaming) through a
// real server over a loopback listener, per spec §8.
func TestClientStreamUpload(t *testing.T) {
	addr, client, stop := startTestServer(t)
	defer stop()

	body := multiFrameBody(t,
		&exampleservice.Point{X: 1, Y: 1},
		&exampleservice.Point{X: 2, Y: 2},
		&exampleservice.Point{X: 3, Y: 3},
	)
	resp, respBody := streamRequest(t, client, addr, "/nodal.example.Echo/Upload", body)
	assert.Equal(t, "0", resp.Trailer.Get("Grpc-Status"))

	fr := frame.NewReader(bytes.NewReader(respBody), codec.Identity{}, 0)
	msg, err := fr.ReadMessage()
	require.NoError(t, err)
	var summary exampleservice.PointSummary
	require.NoError(t, codec.JSONMessageCodec{}.Unmarshal(msg.Payload, &summary))
	assert.Equal(t, int32(3), summary.Count)
}

// TestBidiStreamChat drives scenario 4 (bidirectional streaming) through
// a real server, per spec §8.
func TestBidiStreamChat(t *testing.T) {
	addr, client, stop := startTestServer(t)
	defer stop()

	body := multiFrameBody(t,
		&exampleservice.RouteNote{Location: "a", Message: "hi"},
		&exampleservice.RouteNote{Location: "b", Message: "there"},
	)
	resp, respBody := streamRequest(t, client, addr, "/nodal.example.Echo/Chat", body)
	assert.Equal(t, "0", resp.Trailer.Get("Grpc-Status"))

	fr := frame.NewReader(bytes.NewReader(respBody), codec.Identity{}, 0)
	var notes []exampleservice.RouteNote
	for {
		m, err := fr.ReadMessage()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		var n exampleservice.RouteNote
		require.NoError(t, codec.JSONMessageCodec{}.Unmarshal(m.Payload, &n))
		notes = append(notes, n)
	}
	require.Len(t, notes, 2)
	assert.Equal(t, "hi", notes[0].Message)
	assert.Equal(t, "there", notes[1].Message)
}

// slowService is a one-off registry.ServiceDesc whose only method sleeps
// past its caller's deadline, so TestDeadlineExceededTerminatesCall can
// drive spec §8 scenario 5 ("handler sleeps 200ms" against a 50ms
// grpc-timeout) through the real server/dispatch path rather than
// directly against package call.
type slowService struct{}

type slowRequest struct{}
type slowResponse struct{}

func newSlowServiceDesc() (*registry.ServiceDesc, any) {
	return &registry.ServiceDesc{
		ServiceName: "nodal.example.Slow",
		Methods: []registry.MethodDesc{
			{
				MethodName: "Wait",
				NewRequest: func() any { return &slowRequest{} },
				Decode:     codec.JSONMessageCodec{}.Unmarshal,
				Encode:     codec.JSONMessageCodec{}.Marshal,
				Handler: func(ctx context.Context, srv any, req any) (any, error) {
					select {
					case <-time.After(200 * time.Millisecond):
						return &slowResponse{}, nil
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				},
			},
		},
	}, &slowService{}
}

func TestDeadlineExceededTerminatesCall(t *testing.T) {
	builder := registry.NewBuilder()
	desc, srv := newSlowServiceDesc()
	require.NoError(t, builder.Register(desc, srv))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := server.New(builder.Build(), server.Config{})
	go func() { _ = s.Serve(lis) }()
	defer func() { _ = s.Shutdown(context.Background()) }()

	httpClient := &http.Client{
		Transport: transport.NewClient(transport.ClientTransportConfig{Insecure: true}),
		Timeout:   5 * time.Second,
	}

	b, err := codec.JSONMessageCodec{}.Marshal(&slowRequest{})
	require.NoError(t, err)
	var body bytes.Buffer
	require.NoError(t, frame.NewWriter(&body, codec.Identity{}).Write(b))

	req, err := http.NewRequest(http.MethodPost, "http://"+lis.Addr().String()+"/nodal.example.Slow/Wait", &body)
	require.NoError(t, err)
	req.Header.Set("content-type", "application/grpc+proto")
	req.Header.Set("grpc-timeout", "50m")

	start := time.Now()
	resp, err := httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.ReadAll(resp.Body)

	assert.Less(t, time.Since(start), 200*time.Millisecond, "call should terminate at the deadline, not wait for the slow handler")
	assert.Equal(t, "4", resp.Trailer.Get("Grpc-Status"), "4 is codes.DeadlineExceeded")
}
