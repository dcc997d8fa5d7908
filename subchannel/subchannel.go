// Package subchannel implements the per-endpoint connection lifecycle
// from spec §4.8: one HTTP/2 connection, a ready/connecting/down state
// machine, and a reconnect schedule that backs off on repeated failure
// and trips a circuit breaker so a channel stops hammering a dead
// endpoint.
package subchannel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// State mirrors spec §4.8's subchannel lifecycle.
type State int

const (
	Idle State = iota
	Connecting
	Ready
	TransientFailure
	Shutdown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Connecting:
		return "CONNECTING"
	case Ready:
		return "READY"
	case TransientFailure:
		return "TRANSIENT_FAILURE"
	case Shutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Dialer probes an endpoint, returning an error if it is unreachable.
// The default implementation issues an HTTP/2 PING-equivalent: a cheap
// request against the round tripper.
type Dialer func(ctx context.Context, address string, rt http.RoundTripper) error

// Subchannel owns one logical connection to one endpoint address.
type Subchannel struct {
	address string
	rt      http.RoundTripper
	dial    Dialer
	logger  *zap.Logger
	breaker *gobreaker.CircuitBreaker

	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu    sync.RWMutex
	state State

	stopOnce sync.Once
	stopCh   chan struct{}
	reportCh chan struct{}
}

// Config configures a Subchannel's reconnect and circuit-breaking
// policy, per spec §9: base 1s backoff, capped at 120s, ±20% jitter, and
// a breaker that opens after repeated consecutive dial failures.
type Config struct {
	Address             string
	Transport           http.RoundTripper
	Dial                Dialer
	Logger              *zap.Logger
	BaseBackoff         time.Duration
	MaxBackoff          time.Duration
	ConsecutiveFailures uint32
}

// New builds a Subchannel in the Idle state. It does not connect until
// Start is called.
func New(cfg Config) *Subchannel {
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 120 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Dial == nil {
		cfg.Dial = defaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	st := gobreaker.Settings{
		Name:    "subchannel:" + cfg.Address,
		Timeout: cfg.MaxBackoff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}

	return &Subchannel{
		address:     cfg.Address,
		rt:          cfg.Transport,
		dial:        cfg.Dial,
		logger:      logger,
		breaker:     gobreaker.NewCircuitBreaker(st),
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		state:       Idle,
		stopCh:      make(chan struct{}),
		reportCh:    make(chan struct{}, 1),
	}
}

// Address returns the endpoint address, satisfying balancer.Endpoint.
func (s *Subchannel) Address() string { return s.address }

// State returns the current connectivity state.
func (s *Subchannel) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Subchannel) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Transport returns the HTTP/2 round tripper calls should use against
// this endpoint once it is Ready.
func (s *Subchannel) Transport() http.RoundTripper { return s.rt }

// Start begins the connect-and-reconnect loop in the background,
// retrying with exponential backoff through the circuit breaker until
// Stop is called.
func (s *Subchannel) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Subchannel) run(ctx context.Context) {
	newBackoff := func() *backoff.ExponentialBackOff {
		return backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(s.baseBackoff),
			backoff.WithMaxInterval(s.maxBackoff),
			backoff.WithMaxElapsedTime(0),
			backoff.WithRandomizationFactor(0.2),
		)
	}
	b := newBackoff()
	for {
		select {
		case <-ctx.Done():
			s.setState(Shutdown)
			return
		case <-s.stopCh:
			s.setState(Shutdown)
			return
		default:
		}

		s.setState(Connecting)
		_, err := s.breaker.Execute(func() (any, error) {
			return nil, s.dial(ctx, s.address, s.rt)
		})
		if err == nil {
			s.setState(Ready)
			s.logger.Debug("subchannel ready", zap.String("address", s.address))
			select {
			case <-s.stopCh:
				s.setState(Shutdown)
				return
			case <-ctx.Done():
				s.setState(Shutdown)
				return
			case <-s.reportCh:
				// A live call observed this endpoint's connection break;
				// start a fresh reconnect episode rather than carrying
				// over backoff state from before it was last Ready.
				s.setState(TransientFailure)
				s.logger.Warn("subchannel reported transport failure, reconnecting", zap.String("address", s.address))
				b = newBackoff()
				continue
			}
		}

		s.setState(TransientFailure)
		s.logger.Warn("subchannel dial failed", zap.String("address", s.address), zap.Error(err))

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = b.MaxInterval
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			s.setState(Shutdown)
			return
		case <-s.stopCh:
			s.setState(Shutdown)
			return
		}
	}
}

// Stop tears down the subchannel; idempotent.
func (s *Subchannel) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ReportError tells the subchannel that a live call observed a transport
// failure against this endpoint, per spec §4.8 ("on transport error it
// transitions to down ... reconnects with exponential backoff"). Safe to
// call from any goroutine; a no-op unless the subchannel is currently
// Ready, so repeated reports from concurrent calls against an already
// reconnecting subchannel don't pile up.
func (s *Subchannel) ReportError(err error) {
	if s.State() != Ready {
		return
	}
	select {
	case s.reportCh <- struct{}{}:
	default:
	}
}

func defaultDialer(ctx context.Context, address string, rt http.RoundTripper) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+address+"/", nil)
	if err != nil {
		return err
	}
	resp, err := rt.RoundTrip(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
