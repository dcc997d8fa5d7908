package server

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/call"
	"github.com/nodalrpc/nodal/callctx"
	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/frame"
	"github.com/nodalrpc/nodal/interceptor"
	"github.com/nodalrpc/nodal/metadata"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/status"
	"github.com/nodalrpc/nodal/stream"
)

// dispatch runs one request through the call/interceptor machinery once
// ServeHTTP has validated the wire-level contract, per spec §4.7.
func (s *Server) dispatch(ctx context.Context, w http.ResponseWriter, r *http.Request, entry *registry.Entry, inComp, outComp codec.Compressor) {
	c := call.New(ctx, call.Method{FullName: entry.FullMethod, Shape: entry.Shape})
	c.SetEncoding(outComp.Name(), inComp.Name(), splitCSV(r.Header.Get("grpc-accept-encoding")))

	incomingMD, err := metadata.FromHTTPHeader(r.Header)
	if err != nil {
		s.writeImmediateStatusHTTP(w, http.StatusOK, status.New(codes.InvalidArgument, "malformed metadata"))
		return
	}
	callCtx := callctx.WithIncoming(c.Ctx, incomingMD)

	flusher, _ := w.(http.Flusher)
	ss := &serverStream{
		ctx:     callCtx,
		w:       w,
		flusher: flusher,
		fr:      frame.NewReader(r.Body, inComp, s.cfg.MaxReceiveMessageSize),
		fw:      frame.NewWriter(w, outComp),
		call:    c,
		entry:   entry,
	}

	if s.cfg.StatsHandler != nil {
		s.cfg.StatsHandler.CallBegin(callCtx, entry.FullMethod)
		defer func() {
			s.cfg.StatsHandler.CallEnd(callCtx, entry.FullMethod, c.Status())
		}()
	}

	handlerDone := make(chan struct{})
	go s.watchDeadline(c, handlerDone)

	var final *status.Status
	if entry.Stream != nil {
		final = s.dispatchStream(callCtx, ss, entry)
	} else {
		final = s.dispatchUnary(callCtx, ss, entry)
	}
	close(handlerDone)

	// A deadline that expired while the handler was still running wins
	// over whatever status the handler happened to return, per spec §8
	// invariant 4: the call must terminate DEADLINE_EXCEEDED, not
	// whatever the in-flight handler's return value was racing against.
	if c.Status() == nil && c.Ctx.Err() == context.DeadlineExceeded {
		c.Cancel(status.New(codes.DeadlineExceeded, "deadline exceeded"))
	}
	if cs := c.Status(); cs != nil {
		final = cs
	}
	_ = ss.End(final)

	s.logger.Debug("call finished",
		zap.String("method", entry.FullMethod),
		zap.String("code", final.Code().String()),
	)
}

// watchDeadline races the call's context against the handler's own
// completion (signaled by done closing) and cancels the call with
// DEADLINE_EXCEEDED if the context's deadline fires first, per spec §4.8
// and §8 invariant 4. Call.Cancel is idempotent, so this is a no-op if
// the handler has already produced a terminal status by the time the
// deadline would otherwise fire.
func (s *Server) watchDeadline(c *call.Call, done <-chan struct{}) {
	select {
	case <-c.Ctx.Done():
		if c.Ctx.Err() == context.DeadlineExceeded {
			c.Cancel(status.New(codes.DeadlineExceeded, "deadline exceeded"))
		}
	case <-done:
	}
}

func (s *Server) dispatchStream(ctx context.Context, ss *serverStream, entry *registry.Entry) *status.Status {
	info := &stream.StreamInfo{
		FullMethod:     entry.FullMethod,
		IsClientStream: entry.Shape == call.ClientStream || entry.Shape == call.BidiStream,
		IsServerStream: entry.Shape == call.ServerStream || entry.Shape == call.BidiStream,
	}
	handler := func(srv any, handle stream.Handle) error {
		return entry.Stream(srv, handle)
	}
	err := s.stream(entry.Server, ss, info, handler)
	return status.FromError(err)
}

func (s *Server) dispatchUnary(ctx context.Context, ss *serverStream, entry *registry.Entry) *status.Status {
	req := entry.NewRequest()
	if err := ss.Recv(req); err != nil && err != io.EOF {
		return status.FromError(err)
	}

	info := &interceptor.UnaryServerInfo{FullMethod: entry.FullMethod, Server: entry.Server}
	handler := func(ctx context.Context, req any) (any, error) {
		return entry.Unary(ctx, entry.Server, req)
	}

	resp, err := s.unary(ctx, req, info, handler)
	if err != nil {
		return status.FromError(err)
	}
	if sendErr := ss.Send(resp); sendErr != nil {
		return status.FromError(sendErr)
	}
	return status.OK
}
