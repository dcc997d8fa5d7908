package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/status"
)

// ClassifyError maps a transport-layer failure to a Status, per spec
// §7's taxonomy for errors originating below the call state machine:
// a cancelled or expired context becomes CANCELLED/DEADLINE_EXCEEDED,
// a dead connection becomes UNAVAILABLE, anything else UNKNOWN.
func ClassifyError(err error) *status.Status {
	if err == nil {
		return status.OK
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, "context canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, "context deadline exceeded")
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return status.New(codes.Unavailable, "connection closed")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return status.New(codes.DeadlineExceeded, netErr.Error())
		}
		return status.New(codes.Unavailable, netErr.Error())
	}

	msg := err.Error()
	if containsAny(msg, "stream closed", "stream error", "connection reset", "broken pipe", "use of closed network connection") {
		return status.New(codes.Unavailable, msg)
	}

	return status.New(codes.Unknown, msg)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
