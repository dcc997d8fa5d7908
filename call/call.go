// Package call implements the per-stream Call state machine from spec
// §3/§4.3: the lifecycle from initial metadata through message frames to
// a terminal status, with the shape constraints (§4.3) and the
// exactly-once-status invariant (§8 invariant 1) enforced centrally so
// neither package stream nor package server has to duplicate the rules.
package call

import (
	"context"
	"sync"

	"go.uber.org/atomic"
	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/metadata"
	"github.com/nodalrpc/nodal/status"
)

// Method describes the immutable, codegen-produced record from spec §3:
// a fully-qualified path and its RPC shape. The decode/encode functions
// for its request/response types live on registry.Entry, not here --
// Call itself never marshals a message, only counts and gates frames.
type Method struct {
	FullName string
	Shape    Shape
}

// Call is one logical RPC, mapped 1:1 onto a transport stream, per spec
// §3's Call data model.
type Call struct {
	Method Method
	Ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	sentCount int
	recvCount int
	statusSet bool
	final     *status.Status

	headersSent atomic.Bool
	trailer     metadata.MD

	sendEncoding string
	recvEncoding string
	peerAccept   []string

	onTerminal []func(*status.Status)
}

// New creates a Call for method, deriving its context from parent (which
// should already carry any deadline the server/client set up via
// callctx.WithTimeout).
func New(parent context.Context, method Method) *Call {
	ctx, cancel := context.WithCancel(parent)
	return &Call{
		Method: method,
		Ctx:    ctx,
		cancel: cancel,
		state:  Idle,
	}
}

// SetEncoding records the negotiated send/receive compressor names and
// the peer's accepted encodings (grpc-accept-encoding), used by package
// frame and package server to pick compressors per spec §4.2.
func (c *Call) SetEncoding(send, recv string, peerAccept []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendEncoding, c.recvEncoding, c.peerAccept = send, recv, peerAccept
}

// Encoding returns the negotiated send/receive compressor names.
func (c *Call) Encoding() (send, recv string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendEncoding, c.recvEncoding
}

// PeerAcceptEncoding returns the peer-accepted-encoding set from spec §3.
func (c *Call) PeerAcceptEncoding() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.peerAccept...)
}

// OnTerminal registers fn to run exactly once, when the call's terminal
// status is set (by either SetStatus or Cancel). Used by stream handles
// to unblock any goroutine parked in recv.
func (c *Call) OnTerminal(fn func(*status.Status)) {
	c.mu.Lock()
	already := c.statusSet
	s := c.final
	if !already {
		c.onTerminal = append(c.onTerminal, fn)
	}
	c.mu.Unlock()
	if already {
		fn(s)
	}
}

// BeginHeaders transitions Idle -> HeadersSent. It is idempotent-safe to
// call at most once; a second call returns an INTERNAL status per spec
// §4.3 ("If a handler attempts a second send of initial metadata it is
// reported as a programmer error").
func (c *Call) BeginHeaders() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.terminal() {
		return status.New(codes.Internal, "headers sent after call terminated").Err()
	}
	if c.state != Idle {
		return status.New(codes.Internal, "initial metadata sent more than once").Err()
	}
	c.state = HeadersSent
	return nil
}

// RecordSend validates and counts an outbound message frame against the
// call's shape, transitioning Idle/HeadersSent -> MsgExchange.
func (c *Call) RecordSend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.terminal() {
		return status.New(codes.Internal, "send after call terminated").Err()
	}
	if c.state == Idle {
		c.state = HeadersSent
	}
	if !c.Method.Shape.AllowsMultipleResponses() && c.sentCount >= 1 {
		return status.Newf(codes.Internal, "%s call attempted more than one response message", c.Method.Shape).Err()
	}
	c.sentCount++
	c.state = MsgExchange
	return nil
}

// RecordRecv validates and counts an inbound message frame against the
// call's shape. A violation (e.g. a second request on a unary call)
// surfaces as INVALID_ARGUMENT per spec §4.3 and the caller (package
// server's dispatcher) must not invoke the handler, or must cancel it if
// already invoked.
func (c *Call) RecordRecv() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.terminal() {
		return status.New(codes.Internal, "recv after call terminated").Err()
	}
	if !c.Method.Shape.AllowsMultipleRequests() && c.recvCount >= 1 {
		return status.Newf(codes.InvalidArgument, "%s call received more than one request message", c.Method.Shape).Err()
	}
	c.recvCount++
	c.state = MsgExchange
	return nil
}

// HalfCloseLocal transitions MsgExchange -> HalfClosedLocal, marking
// that this side has no more messages to send.
func (c *Call) HalfCloseLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.terminal() {
		c.state = HalfClosedLocal
	}
}

// SetStatus sets the call's terminal status exactly once; subsequent
// calls are no-ops, preserving invariant 1 ("exactly one terminal
// status"). It cancels Ctx so the handler observes termination.
func (c *Call) SetStatus(s *status.Status) {
	c.mu.Lock()
	if c.statusSet {
		c.mu.Unlock()
		return
	}
	c.statusSet = true
	c.final = s
	c.state = Closed
	hooks := c.onTerminal
	c.onTerminal = nil
	c.mu.Unlock()

	c.cancel()
	for _, h := range hooks {
		h(s)
	}
}

// Cancel transitions the call to Cancelled with the given status (e.g.
// DEADLINE_EXCEEDED or CANCELLED), per spec §4.3 ("Any state -> Cancelled
// on deadline expiry, context cancel, local abort, or RST_STREAM
// receipt"). Like SetStatus, it is idempotent: the first caller wins.
func (c *Call) Cancel(s *status.Status) {
	c.mu.Lock()
	if c.statusSet {
		c.mu.Unlock()
		return
	}
	c.statusSet = true
	c.final = s
	c.state = Cancelled
	hooks := c.onTerminal
	c.onTerminal = nil
	c.mu.Unlock()

	c.cancel()
	for _, h := range hooks {
		h(s)
	}
}

// Status returns the terminal status if one has been set, else nil.
func (c *Call) Status() *status.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.statusSet {
		return nil
	}
	return c.final
}

// State returns the call's current state.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetTrailer merges md into the buffered trailer metadata, per spec
// §4.4's set_trailer operation: buffered until the terminal status is
// written.
func (c *Call) SetTrailer(md metadata.MD) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trailer.Merge(md)
}

// Trailer returns the accumulated trailer metadata.
func (c *Call) Trailer() metadata.MD {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trailer.Clone()
}

// MarkHeadersSent records that initial metadata has gone out on the
// wire, guarding against the implicit-send path in package stream also
// trying to send them. Safe for concurrent use; returns false if headers
// were already sent by someone else.
func (c *Call) MarkHeadersSent() bool {
	return c.headersSent.CompareAndSwap(false, true)
}
