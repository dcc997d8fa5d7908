// Package channel implements the Channel component from spec §4.9: a
// named pool of subchannels for one target, a pick strategy, and the
// client-side call glue that threads a call through the interceptor
// pipeline, frame layer, and the picked subchannel's HTTP/2 transport.
package channel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nodalrpc/nodal/balancer"
	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/interceptor"
	"github.com/nodalrpc/nodal/resolver"
	"github.com/nodalrpc/nodal/stats"
	"github.com/nodalrpc/nodal/subchannel"
	"github.com/nodalrpc/nodal/transport"
)

// ErrNoReadySubchannel is returned by a pick when the Picker finds no
// usable Ready subchannel. The call fails fast; it is not queued until a
// subchannel becomes Ready.
var ErrNoReadySubchannel = errors.New("channel: no ready subchannel")

// Config configures a Channel. Target and Resolver together produce the
// endpoint set; Picker chooses among the Ready ones.
type Config struct {
	Name            string
	Target          string
	Resolver        resolver.Resolver
	Picker          balancer.Picker
	Transport       transport.ClientTransportConfig
	RefreshInterval time.Duration

	UnaryInterceptors     []interceptor.UnaryClientInterceptor
	StreamInterceptors    []interceptor.StreamClientInterceptor
	StatsHandler          stats.Handler
	SendCompressor        codec.Compressor
	MaxReceiveMessageSize int

	Logger *zap.Logger
	// SyncStart, when true, blocks Start until resolution completes and
	// at least one subchannel reaches Ready (or ctx given to Start
	// expires); otherwise subchannels connect lazily in the background
	// (idle-start), per spec §4.9/§5.
	SyncStart bool
}

// Channel is a named pool of subchannels for one logical target.
type Channel struct {
	cfg    Config
	rt     http.RoundTripper
	logger *zap.Logger
	unary  interceptor.UnaryClientInterceptor
	stream interceptor.StreamClientInterceptor

	mu          sync.RWMutex
	subchannels map[string]*subchannel.Subchannel
	stopped     bool

	eg *errgroup.Group
}

// New builds a Channel bound to cfg. It does not resolve or connect
// until Start is called.
func New(cfg Config) *Channel {
	if cfg.Picker == nil {
		cfg.Picker = &balancer.RoundRobin{}
	}
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.Static{}
	}
	if cfg.SendCompressor == nil {
		cfg.SendCompressor = codec.Identity{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Channel{
		cfg:         cfg,
		rt:          transport.NewClient(cfg.Transport),
		logger:      logger,
		unary:       interceptor.ChainUnaryClient(cfg.UnaryInterceptors...),
		stream:      interceptor.ChainStreamClient(cfg.StreamInterceptors...),
		subchannels: map[string]*subchannel.Subchannel{},
	}
}

// Start resolves the target, stands up a subchannel per endpoint, and
// begins a background refresh loop. With SyncStart it blocks until at
// least one subchannel is Ready or ctx is done.
func (c *Channel) Start(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		return err
	}
	if c.cfg.RefreshInterval > 0 {
		eg, egCtx := errgroup.WithContext(ctx)
		c.eg = eg
		eg.Go(func() error {
			c.refreshLoop(egCtx)
			return nil
		})
	}
	if !c.cfg.SyncStart {
		return nil
	}
	for {
		if c.IsReady() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (c *Channel) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refresh(ctx); err != nil {
				c.logger.Warn("channel refresh failed", zap.Error(err))
			}
		}
	}
}

func (c *Channel) refresh(ctx context.Context) error {
	endpoints, err := c.cfg.Resolver.Resolve(ctx, c.cfg.Target)
	if err != nil {
		return errors.Wrap(err, "channel: resolve target")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}

	prev := make([]resolver.Endpoint, 0, len(c.subchannels))
	for addr := range c.subchannels {
		prev = append(prev, resolver.Endpoint{Address: addr})
	}
	added, removed := resolver.Diff(prev, endpoints)

	for _, e := range added {
		sc := subchannel.New(subchannel.Config{
			Address:   e.Address,
			Transport: c.rt,
			Logger:    c.logger,
		})
		sc.Start(ctx)
		c.subchannels[e.Address] = sc
	}
	for _, e := range removed {
		if sc, ok := c.subchannels[e.Address]; ok {
			sc.Stop()
			delete(c.subchannels, e.Address)
		}
	}
	return nil
}

// IsReady reports whether at least one subchannel is Ready.
func (c *Channel) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sc := range c.subchannels {
		if sc.State() == subchannel.Ready {
			return true
		}
	}
	return false
}

// readySnapshot returns a point-in-time, lock-free-to-iterate copy of
// the Ready subchannels, per spec §5's copy-on-write picking discipline.
func (c *Channel) readySnapshot() []balancer.Endpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]balancer.Endpoint, 0, len(c.subchannels))
	for _, sc := range c.subchannels {
		if sc.State() == subchannel.Ready {
			out = append(out, sc)
		}
	}
	return out
}

// pick chooses a Ready subchannel via the configured Picker.
func (c *Channel) pick(ctx context.Context) (*subchannel.Subchannel, error) {
	ready := c.readySnapshot()
	e, ok := c.cfg.Picker.Pick(ctx, ready)
	if !ok {
		return nil, ErrNoReadySubchannel
	}
	return e.(*subchannel.Subchannel), nil
}

// Wait blocks until the background refresh loop started by Start exits
// (normally because its context was cancelled), supervised through
// errgroup.Group the same way cmd/nodal-server supervises its top-level
// goroutines. A no-op if RefreshInterval was never configured.
func (c *Channel) Wait() error {
	if c.eg == nil {
		return nil
	}
	return c.eg.Wait()
}

// Release relinquishes key's exclusive claim on whichever endpoint it
// currently holds, per spec §4.9's claim balancer semantics. It is a
// no-op if the channel's Picker doesn't hold exclusive per-caller state
// (only balancer.Claim does).
func (c *Channel) Release(key string) {
	if r, ok := c.cfg.Picker.(balancer.Releaser); ok {
		r.Release(key)
	}
}

// Stop tears down every subchannel. Idempotent.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	for _, sc := range c.subchannels {
		sc.Stop()
	}
}
