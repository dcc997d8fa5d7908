// Package status implements the canonical gRPC status value and its
// wire encoding in trailers, reusing google.golang.org/grpc/codes as the
// canonical code enum the same way the teacher package reuses it purely
// as a vocabulary, without pulling in grpc-go's transport or server.
package status

import (
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	gstatus "google.golang.org/grpc/status"

	"github.com/nodalrpc/nodal/metadata"
)

// Status is the terminal outcome of exactly one call, per spec §3 and
// invariant 1: every call ends with exactly one Status.
type Status struct {
	code    codes.Code
	message string
}

// New builds a Status from a code and message.
func New(code codes.Code, message string) *Status {
	return &Status{code: code, message: message}
}

// Newf builds a Status with a formatted message.
func Newf(code codes.Code, format string, args ...any) *Status {
	return New(code, errors.Errorf(format, args...).Error())
}

// OK is the sentinel success status.
var OK = New(codes.OK, "")

// Code returns the status code.
func (s *Status) Code() codes.Code {
	if s == nil {
		return codes.OK
	}
	return s.code
}

// Message returns the status message.
func (s *Status) Message() string {
	if s == nil {
		return ""
	}
	return s.message
}

// Err returns nil for an OK status and an error wrapping the status
// otherwise, mirroring google.golang.org/grpc/status.Status.Err so
// handler code can use familiar idioms.
func (s *Status) Err() error {
	if s.Code() == codes.OK {
		return nil
	}
	return gstatus.Error(s.Code(), s.Message())
}

// FromError extracts a Status from an error produced by Err, falling
// back to codes.Unknown with a redacted message for anything else, per
// spec §7: "A handler that throws or aborts without setting status
// results in UNKNOWN with a redacted message."
func FromError(err error) *Status {
	if err == nil {
		return OK
	}
	if gs, ok := gstatus.FromError(err); ok {
		return New(gs.Code(), gs.Message())
	}
	return New(codes.Unknown, "unknown error")
}

// WriteTrailer renders the status into md's grpc-status/grpc-message
// trailer pair. grpc-message is percent-encoded per the gRPC wire
// protocol so that non-ASCII / control bytes survive as an HTTP header
// value.
func (s *Status) WriteTrailer(md *metadata.MD) {
	md.SetReserved("grpc-status", strconv.Itoa(int(s.Code())))
	if s.Message() != "" {
		md.SetReserved("grpc-message", percentEncode(s.Message()))
	}
}

// FromTrailer parses a Status back out of grpc-status/grpc-message
// trailer values. A missing grpc-status yields codes.Unknown, matching
// the "terminated without status" case in spec §7.
func FromTrailer(md metadata.MD) *Status {
	codeStrs := md.Get("grpc-status")
	if len(codeStrs) == 0 {
		return New(codes.Unknown, "missing grpc-status trailer")
	}
	c, err := strconv.Atoi(codeStrs[0])
	if err != nil {
		return New(codes.Unknown, "malformed grpc-status trailer: "+codeStrs[0])
	}
	msg := ""
	if m := md.Get("grpc-message"); len(m) > 0 {
		if decoded, derr := percentDecode(m[0]); derr == nil {
			msg = decoded
		} else {
			msg = m[0]
		}
	}
	return New(codes.Code(c), msg)
}

// percentEncode follows the gRPC wire protocol's grpc-message encoding:
// percent-encode everything outside the printable ASCII range plus '%'.
func percentEncode(s string) string {
	needsEscape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '%' {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return s
	}
	const hex = "0123456789ABCDEF"
	out := make([]byte, 0, len(s)+8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e || c == '%' {
			out = append(out, '%', hex[c>>4], hex[c&0x0f])
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func percentDecode(s string) (string, error) {
	return url.PathUnescape(s)
}
