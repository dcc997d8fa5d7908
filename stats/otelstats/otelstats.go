// Package otelstats implements stats.Handler on top of OpenTelemetry
// metrics, the instrumentation library the retrieved corpus's own
// receiver/collector code (go.opentelemetry.io/otel/metric counters
// built from an otel.Meter) reaches for, generalized here to nodal's
// call lifecycle instead of a receiver's byte/item counters.
package otelstats

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/nodalrpc/nodal/status"
)

// Handler records call counts, message counts, and message sizes against
// an OpenTelemetry meter.
type Handler struct {
	calls       metric.Int64Counter
	messagesIn  metric.Int64Counter
	messagesOut metric.Int64Counter
	bytesIn     metric.Int64Counter
	bytesOut    metric.Int64Counter
}

// New builds a Handler recording instruments under meter.
func New(meter metric.Meter) (*Handler, error) {
	calls, err := meter.Int64Counter("nodal.call.count",
		metric.WithDescription("number of calls completed, labeled by method and status code"))
	if err != nil {
		return nil, err
	}
	messagesIn, err := meter.Int64Counter("nodal.call.messages_received",
		metric.WithDescription("number of inbound message frames"))
	if err != nil {
		return nil, err
	}
	messagesOut, err := meter.Int64Counter("nodal.call.messages_sent",
		metric.WithDescription("number of outbound message frames"))
	if err != nil {
		return nil, err
	}
	bytesIn, err := meter.Int64Counter("nodal.call.bytes_received",
		metric.WithDescription("bytes read from inbound message frames"))
	if err != nil {
		return nil, err
	}
	bytesOut, err := meter.Int64Counter("nodal.call.bytes_sent",
		metric.WithDescription("bytes written to outbound message frames"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		calls:       calls,
		messagesIn:  messagesIn,
		messagesOut: messagesOut,
		bytesIn:     bytesIn,
		bytesOut:    bytesOut,
	}, nil
}

// CallBegin implements stats.Handler; nothing to record until the call
// has an outcome.
func (h *Handler) CallBegin(ctx context.Context, fullMethod string) {}

// InboundMessage implements stats.Handler.
func (h *Handler) InboundMessage(ctx context.Context, fullMethod string, size int) {
	h.messagesIn.Add(ctx, 1, metric.WithAttributes(methodAttr(fullMethod)))
	h.bytesIn.Add(ctx, int64(size), metric.WithAttributes(methodAttr(fullMethod)))
}

// OutboundMessage implements stats.Handler.
func (h *Handler) OutboundMessage(ctx context.Context, fullMethod string, size int) {
	h.messagesOut.Add(ctx, 1, metric.WithAttributes(methodAttr(fullMethod)))
	h.bytesOut.Add(ctx, int64(size), metric.WithAttributes(methodAttr(fullMethod)))
}

// CallEnd implements stats.Handler.
func (h *Handler) CallEnd(ctx context.Context, fullMethod string, final *status.Status) {
	h.calls.Add(ctx, 1, metric.WithAttributes(
		methodAttr(fullMethod),
		codeAttr(final),
	))
}
