package call

// State is one node in the per-stream lifecycle from spec §4.3. The same
// state set is mirrored on both peers; each side's Call tracks its own
// State independently in a single state field.
type State int

const (
	// Idle is the state before any initial metadata has been sent.
	Idle State = iota
	// HeadersSent follows the call's own initial metadata being sent.
	HeadersSent
	// MsgExchange follows the first message frame in either direction.
	MsgExchange
	// HalfClosedLocal follows this side signaling end-of-stream (a
	// unary/client-stream request completing, or a handler returning).
	HalfClosedLocal
	// Closed follows a terminal status being sent or received.
	Closed
	// Cancelled follows a deadline expiry, context cancel, local abort,
	// or RST_STREAM receipt.
	Cancelled
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HeadersSent:
		return "headers_sent"
	case MsgExchange:
		return "msg_exchange"
	case HalfClosedLocal:
		return "half_closed_local"
	case Closed:
		return "closed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// terminal reports whether no further transitions are possible from s.
func (s State) terminal() bool {
	return s == Closed || s == Cancelled
}
