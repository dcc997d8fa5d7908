// Package transport implements the HTTP/2 delegation from spec §4.9/§9:
// nodal never reimplements HTTP/2 framing, flow control, or header
// compression itself, it delegates to net/http and golang.org/x/net/http2,
// the same division of labor the retrieved corpus's own HTTP-based gRPC
// tooling uses (net/http.Client/Server plus an http2.Transport/h2c.Handler
// pair), rather than vendoring grpc-go's transport package.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ContentType is the wire content-type nodal speaks, per spec §6.
const ContentType = "application/grpc+proto"

// ServerTransportConfig configures the listening side. TLSConfig nil means
// cleartext HTTP/2 via h2c, matching spec §9's "supports both TLS and
// plaintext h2c for development".
type ServerTransportConfig struct {
	Addr      string
	TLSConfig *tls.Config
	Handler   http.Handler
}

// NewServer builds the *http.Server a nodal Server runs, wiring h2c when
// TLSConfig is nil so HTTP/2 is available over plaintext for local
// development and tests.
func NewServer(cfg ServerTransportConfig) *http.Server {
	srv := &http.Server{
		Addr:      cfg.Addr,
		TLSConfig: cfg.TLSConfig,
	}
	if cfg.TLSConfig == nil {
		h2s := &http2.Server{}
		srv.Handler = h2c.NewHandler(cfg.Handler, h2s)
	} else {
		srv.Handler = cfg.Handler
		_ = http2.ConfigureServer(srv, &http2.Server{})
	}
	return srv
}

// ClientTransportConfig configures the dialing side.
type ClientTransportConfig struct {
	TLSConfig *tls.Config
	// Insecure, when true and TLSConfig is nil, dials cleartext HTTP/2
	// (prior knowledge, no ALPN negotiation) instead of upgrading from
	// HTTP/1.1, matching how loopback test servers speak h2c.
	Insecure bool
}

// NewClient returns an http.RoundTripper speaking HTTP/2 directly, per
// spec §4.8 ("each Subchannel owns exactly one HTTP/2 connection").
func NewClient(cfg ClientTransportConfig) http.RoundTripper {
	if cfg.TLSConfig != nil {
		return &http2.Transport{TLSClientConfig: cfg.TLSConfig}
	}
	if cfg.Insecure {
		return &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, network, addr)
			},
		}
	}
	return &http2.Transport{}
}

// ErrConnectionUnavailable names a connect failure to be treated as
// subchannel-down rather than a single RPC failure. No function in this
// module returns it; dial failures surface as the transport's own errors.
var ErrConnectionUnavailable = errors.New("transport: connection unavailable")
