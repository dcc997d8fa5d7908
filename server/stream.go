package server

import (
	"context"
	"io"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/call"
	"github.com/nodalrpc/nodal/frame"
	"github.com/nodalrpc/nodal/metadata"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/status"
	"github.com/nodalrpc/nodal/stream"
	"github.com/nodalrpc/nodal/transport"
)

// serverStream is the server-side stream.Handle, framing messages onto
// an HTTP/2 response body and reading them off the request body, per
// spec §4.4 bound to exactly one Call.
type serverStream struct {
	ctx     context.Context
	w       http.ResponseWriter
	flusher http.Flusher
	fr      *frame.Reader
	fw      *frame.Writer
	call    *call.Call
	entry   *registry.Entry
}

var _ stream.Handle = (*serverStream)(nil)

// Context implements stream.Handle.
func (s *serverStream) Context() context.Context { return s.ctx }

// SendHeaders implements stream.Handle.
func (s *serverStream) SendHeaders(md metadata.MD) error {
	if err := s.call.BeginHeaders(); err != nil {
		return err
	}
	if !s.call.MarkHeadersSent() {
		return status.New(codes.Internal, "headers already sent").Err()
	}
	s.writeHeaders(md)
	return nil
}

func (s *serverStream) writeHeaders(md metadata.MD) {
	h := s.w.Header()
	h.Set("content-type", transport.ContentType)
	_, outEncoding := s.call.Encoding()
	if outEncoding != "" && outEncoding != "identity" {
		h.Set("grpc-encoding", outEncoding)
	}
	for k, vs := range md.ToHTTPHeader() {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	h.Add("Trailer", "Grpc-Status")
	h.Add("Trailer", "Grpc-Message")
	s.w.WriteHeader(http.StatusOK)
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// Send implements stream.Handle.
func (s *serverStream) Send(msg any) error {
	if s.call.MarkHeadersSent() {
		s.writeHeaders(metadata.MD{})
	}
	if err := s.call.RecordSend(); err != nil {
		return err
	}
	payload, err := s.entry.Encode(msg)
	if err != nil {
		return status.Newf(codes.Internal, "encoding response: %v", err).Err()
	}
	return s.fw.Write(payload)
}

// Recv implements stream.Handle.
func (s *serverStream) Recv(msg any) error {
	m, err := s.fr.ReadMessage()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return err
	}
	if err := s.call.RecordRecv(); err != nil {
		return err
	}
	if err := s.entry.Decode(m.Payload, msg); err != nil {
		return status.Newf(codes.Internal, "decoding request: %v", err).Err()
	}
	return nil
}

// SetTrailer implements stream.Handle.
func (s *serverStream) SetTrailer(md metadata.MD) {
	s.call.SetTrailer(md)
}

// End implements stream.Handle, writing the terminal status and
// buffered trailer metadata as HTTP trailers.
func (s *serverStream) End(st *status.Status) error {
	if s.call.MarkHeadersSent() {
		s.writeHeaders(metadata.MD{})
	}
	trailer := s.call.Trailer()
	st.WriteTrailer(&trailer)
	h := s.w.Header()
	trailer.Range(func(key, value string) bool {
		h.Set(http.TrailerPrefix+key, value)
		return true
	})
	s.call.SetStatus(st)
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
