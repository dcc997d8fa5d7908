package channel

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/callctx"
	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/frame"
	"github.com/nodalrpc/nodal/interceptor"
	"github.com/nodalrpc/nodal/metadata"
	"github.com/nodalrpc/nodal/status"
	"github.com/nodalrpc/nodal/transport"
)

// MethodCodec binds a client call to the marshal/unmarshal functions a
// generated stub supplies, mirroring package registry's Decoder/Encoder
// split without importing package registry (package channel must not
// depend on the server-side dispatch table).
type MethodCodec struct {
	Encode func(v any) ([]byte, error)
	Decode func(b []byte, v any) error
}

// Invoke performs one unary call against fullMethod, per spec §4.9's
// client-side call path: interceptor pipeline, then pick, then frame a
// single request message and read a single response message.
func (c *Channel) Invoke(ctx context.Context, fullMethod string, req, resp any, mc MethodCodec) error {
	ctx = callctx.WithOutgoing(ctx)
	info := &interceptor.UnaryCallInfo{FullMethod: fullMethod}
	_, err := c.unary(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return nil, c.invokeOnce(ctx, fullMethod, req, resp, mc)
	})
	return err
}

func (c *Channel) invokeOnce(ctx context.Context, fullMethod string, req, resp any, mc MethodCodec) error {
	sc, err := c.pick(ctx)
	if err != nil {
		return status.New(codes.Unavailable, err.Error()).Err()
	}

	payload, err := mc.Encode(req)
	if err != nil {
		return status.Newf(codes.Internal, "encoding request: %v", err).Err()
	}
	var body bytes.Buffer
	if err := frame.NewWriter(&body, c.cfg.SendCompressor).Write(payload); err != nil {
		return status.Newf(codes.Internal, "framing request: %v", err).Err()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+sc.Address()+fullMethod, &body)
	if err != nil {
		return status.Newf(codes.Internal, "building request: %v", err).Err()
	}
	httpReq.Header.Set("content-type", transport.ContentType)
	if c.cfg.SendCompressor.Name() != "identity" {
		httpReq.Header.Set("grpc-encoding", c.cfg.SendCompressor.Name())
	}
	httpReq.Header.Set("grpc-accept-encoding", strings.Join(codec.Names(), ","))
	if d, ok := ctx.Deadline(); ok {
		httpReq.Header.Set("grpc-timeout", callctx.FormatTimeout(time.Until(d)))
	}
	callctx.Outgoing(ctx).Range(func(key, value string) bool {
		httpReq.Header.Add(key, value)
		return true
	})

	httpResp, err := sc.Transport().RoundTrip(httpReq)
	if err != nil {
		sc.ReportError(err)
		return transport.ClassifyError(err).Err()
	}
	defer httpResp.Body.Close()

	if httpResp.Header.Get("grpc-status") != "" {
		immediate := status.New(parseGrpcStatus(httpResp.Header), httpResp.Header.Get("grpc-message"))
		if immediate.Code() != codes.OK {
			return immediate.Err()
		}
	}

	inName := httpResp.Header.Get("grpc-encoding")
	if inName == "" {
		inName = "identity"
	}
	inComp, ok := codec.Lookup(inName)
	if !ok {
		return status.New(codes.Unimplemented, "server used unsupported grpc-encoding "+inName).Err()
	}

	fr := frame.NewReader(httpResp.Body, inComp, c.maxReceiveMessageSize())
	msg, err := fr.ReadMessage()
	if err != nil && err != io.EOF {
		sc.ReportError(err)
		return status.FromError(err).Err()
	}
	if msg != nil {
		if err := mc.Decode(msg.Payload, resp); err != nil {
			return status.Newf(codes.Internal, "decoding response: %v", err).Err()
		}
	}

	io.Copy(io.Discard, httpResp.Body)
	trailerMD, _ := metadata.FromHTTPHeader(httpResp.Trailer)
	final := status.FromTrailer(trailerMD)
	return final.Err()
}

func (c *Channel) maxReceiveMessageSize() int { return c.cfg.MaxReceiveMessageSize }

func parseGrpcStatus(h http.Header) codes.Code {
	s := h.Get("grpc-status")
	if s == "" {
		return codes.OK
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return codes.Unknown
		}
		n = n*10 + int(r-'0')
	}
	return codes.Code(n)
}
