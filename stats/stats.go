// Package stats implements the observability hook from spec §9: a
// small, side-effect-only interface the server and channel call into at
// well-defined points in a call's lifecycle, so an instrumentation
// backend never sits on the hot path's error-handling logic.
package stats

import (
	"context"

	"github.com/nodalrpc/nodal/status"
)

// Handler receives lifecycle notifications for a call. All methods
// must return promptly; a Handler that blocks stalls the call. Within
// this module, package server calls CallBegin and CallEnd once per
// dispatched call; neither package server nor package channel calls
// OutboundMessage or InboundMessage, and package channel calls no
// Handler method.
type Handler interface {
	// CallBegin fires once initial metadata has been processed and the
	// call is about to reach a handler (server) or be sent (client).
	CallBegin(ctx context.Context, fullMethod string)
	// OutboundMessage fires after a message frame is written.
	OutboundMessage(ctx context.Context, fullMethod string, size int)
	// InboundMessage fires after a message frame is read.
	InboundMessage(ctx context.Context, fullMethod string, size int)
	// CallEnd fires exactly once, when the call's terminal status is set.
	CallEnd(ctx context.Context, fullMethod string, final *status.Status)
}

// NopHandler implements Handler with no-ops. Server does not substitute
// it for a nil StatsHandler; it simply skips the calls when none is
// configured.
type NopHandler struct{}

func (NopHandler) CallBegin(context.Context, string)               {}
func (NopHandler) OutboundMessage(context.Context, string, int)    {}
func (NopHandler) InboundMessage(context.Context, string, int)     {}
func (NopHandler) CallEnd(context.Context, string, *status.Status) {}

var _ Handler = NopHandler{}
