package callctx

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// timeoutUnits maps the grpc-timeout wire suffix to a time.Duration
// scale, per spec §4.3: "decimal integer + unit suffix H|M|S|m|u|n".
var timeoutUnits = map[byte]time.Duration{
	'H': time.Hour,
	'M': time.Minute,
	'S': time.Second,
	'm': time.Millisecond,
	'u': time.Microsecond,
	'n': time.Nanosecond,
}

// ErrMalformedTimeout is returned by ParseTimeout for a grpc-timeout
// value that doesn't match "<digits><unit>".
var ErrMalformedTimeout = errors.New("callctx: malformed grpc-timeout value")

// ParseTimeout parses a grpc-timeout header value into a Duration.
func ParseTimeout(value string) (time.Duration, error) {
	if len(value) < 2 {
		return 0, ErrMalformedTimeout
	}
	unit, ok := timeoutUnits[value[len(value)-1]]
	if !ok {
		return 0, ErrMalformedTimeout
	}
	n, err := strconv.ParseInt(value[:len(value)-1], 10, 64)
	if err != nil {
		return 0, errors.Wrap(ErrMalformedTimeout, err.Error())
	}
	if n < 0 {
		return 0, ErrMalformedTimeout
	}
	return time.Duration(n) * unit, nil
}

// FormatTimeout renders d as a grpc-timeout header value using the
// coarsest unit that can represent it exactly, falling back to
// nanoseconds.
func FormatTimeout(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "H"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "M"
	case d%time.Second == 0:
		return strconv.FormatInt(int64(d/time.Second), 10) + "S"
	case d%time.Millisecond == 0:
		return strconv.FormatInt(int64(d/time.Millisecond), 10) + "m"
	case d%time.Microsecond == 0:
		return strconv.FormatInt(int64(d/time.Microsecond), 10) + "u"
	default:
		return strconv.FormatInt(int64(d), 10) + "n"
	}
}
