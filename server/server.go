// Package server implements the Server component from spec §4.7: it
// binds a Registry to an HTTP/2 listener, dispatches each incoming
// request through the shared frame/call/interceptor machinery, and
// enforces the wire-level contract (content-type, grpc-timeout,
// grpc-encoding negotiation) before a handler ever sees a request.
package server

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/callctx"
	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/interceptor"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/stats"
	"github.com/nodalrpc/nodal/status"
	"github.com/nodalrpc/nodal/transport"
)

// Config collects everything needed to run a Server, bound once at
// construction and never mutated afterward, matching spec §5's
// read-only-after-startup registry requirement.
type Config struct {
	Addr                  string
	TLSConfig             *tls.Config
	Logger                *zap.Logger
	UnaryInterceptors     []interceptor.UnaryServerInterceptor
	StreamInterceptors    []interceptor.StreamServerInterceptor
	StatsHandler          stats.Handler
	MaxReceiveMessageSize int
	// DrainTimeout bounds how long Shutdown waits for in-flight calls to
	// finish before forcibly closing connections.
	DrainTimeout time.Duration
}

const defaultMaxReceiveMessageSize = 4 << 20

// Server dispatches gRPC calls to a Registry over HTTP/2.
type Server struct {
	cfg      Config
	registry *registry.Registry
	logger   *zap.Logger
	unary    interceptor.UnaryServerInterceptor
	stream   interceptor.StreamServerInterceptor
	http     *http.Server
}

// New builds a Server bound to reg. It does not start listening; call
// Serve or ListenAndServe.
func New(reg *registry.Registry, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxReceiveMessageSize == 0 {
		cfg.MaxReceiveMessageSize = defaultMaxReceiveMessageSize
	}

	s := &Server{
		cfg:      cfg,
		registry: reg,
		logger:   logger,
		unary:    interceptor.ChainUnaryServer(cfg.UnaryInterceptors...),
		stream:   interceptor.ChainStreamServer(cfg.StreamInterceptors...),
	}
	s.http = transport.NewServer(transport.ServerTransportConfig{
		Addr:      cfg.Addr,
		TLSConfig: cfg.TLSConfig,
		Handler:   s,
	})
	return s
}

// ListenAndServe binds cfg.Addr and serves until the listener fails or
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve runs the server on a caller-supplied listener.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("server starting", zap.String("addr", lis.Addr().String()))
	if s.cfg.TLSConfig != nil {
		return s.http.ServeTLS(lis, "", "")
	}
	err := s.http.Serve(lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight calls (bounded by cfg.DrainTimeout, default
// unbounded/caller-controlled via ctx) and stops accepting new ones, per
// spec §5's graceful-shutdown requirement.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DrainTimeout)
		defer cancel()
	}
	err := s.http.Shutdown(ctx)
	if err != nil && ctx.Err() != nil {
		_ = s.http.Close()
	}
	return err
}

// ServeHTTP is the single dispatch entrypoint every incoming HTTP/2
// stream goes through, implementing spec §4.7's request lifecycle:
// method lookup, content-type validation, encoding negotiation, timeout
// derivation, then handoff to the call/interceptor pipeline.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.registry.Lookup(r.URL.Path)
	if !ok {
		s.writeImmediateStatusHTTP(w, http.StatusOK, status.New(codes.Unimplemented, "unknown method "+r.URL.Path))
		return
	}

	if !strings.HasPrefix(r.Header.Get("content-type"), "application/grpc") {
		// Per spec §4.5, an unrecognized content-type is UNKNOWN with
		// HTTP 415 semantics, not a 200 carrying a grpc-status header --
		// the request never reached gRPC framing at all.
		s.writeImmediateStatusHTTP(w, http.StatusUnsupportedMediaType, status.New(codes.Unknown, "unsupported content-type"))
		return
	}

	inEncoding := r.Header.Get("grpc-encoding")
	if inEncoding == "" {
		inEncoding = "identity"
	}
	inComp, ok := codec.Lookup(inEncoding)
	if !ok {
		w.Header().Set("grpc-accept-encoding", strings.Join(codec.Names(), ","))
		s.writeImmediateStatusHTTP(w, http.StatusOK, status.New(codes.Unimplemented, "unsupported grpc-encoding "+inEncoding))
		return
	}
	outComp := codec.Negotiate(splitCSV(r.Header.Get("grpc-accept-encoding")))

	ctx := r.Context()
	var cancel context.CancelFunc
	if timeout := r.Header.Get("grpc-timeout"); timeout != "" {
		var err error
		ctx, cancel, err = callctx.WithTimeout(ctx, timeout)
		if err != nil {
			s.writeImmediateStatusHTTP(w, http.StatusOK, status.New(codes.InvalidArgument, "malformed grpc-timeout"))
			return
		}
		defer cancel()
	}

	s.dispatch(ctx, w, r, entry, inComp, outComp)
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// writeImmediateStatusHTTP rejects a request before any handler runs,
// writing grpc-status/grpc-message directly as headers since no response
// body will follow, per spec §7's "terminated before headers" case.
// httpStatus is the outer HTTP status line: almost always 200 (the
// grpc-status header carries the real outcome), except where spec §4.5
// calls for genuine HTTP-level semantics, such as 415 for a request that
// never carried a recognizable gRPC content-type.
func (s *Server) writeImmediateStatusHTTP(w http.ResponseWriter, httpStatus int, st *status.Status) {
	w.Header().Set("content-type", transport.ContentType)
	w.Header().Set("grpc-status", strconv.Itoa(int(st.Code())))
	if st.Message() != "" {
		w.Header().Set("grpc-message", st.Message())
	}
	w.WriteHeader(httpStatus)
}
