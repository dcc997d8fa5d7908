package subchannel_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/subchannel"
)

func TestSubchannelBecomesReadyOnSuccessfulDial(t *testing.T) {
	sc := subchannel.New(subchannel.Config{
		Address: "127.0.0.1:0",
		Dial: func(ctx context.Context, address string, rt http.RoundTripper) error {
			return nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc.Start(ctx)
	require.Eventually(t, func() bool {
		return sc.State() == subchannel.Ready
	}, time.Second, time.Millisecond)
}

func TestSubchannelRetriesOnDialFailure(t *testing.T) {
	var attempts atomic.Int32
	sc := subchannel.New(subchannel.Config{
		Address:     "127.0.0.1:0",
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		Dial: func(ctx context.Context, address string, rt http.RoundTripper) error {
			n := attempts.Add(1)
			if n < 3 {
				return errors.New("dial failed")
			}
			return nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc.Start(ctx)
	require.Eventually(t, func() bool {
		return sc.State() == subchannel.Ready
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
}

func TestSubchannelReportErrorReconnects(t *testing.T) {
	var attempts atomic.Int32
	sc := subchannel.New(subchannel.Config{
		Address:     "127.0.0.1:0",
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		Dial: func(ctx context.Context, address string, rt http.RoundTripper) error {
			attempts.Add(1)
			return nil
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc.Start(ctx)
	require.Eventually(t, func() bool { return sc.State() == subchannel.Ready }, time.Second, time.Millisecond)
	require.EqualValues(t, 1, attempts.Load())

	sc.ReportError(errors.New("transport reset"))
	require.Eventually(t, func() bool {
		return sc.State() == subchannel.Ready && attempts.Load() >= 2
	}, time.Second, time.Millisecond, "reported transport failure should trigger a fresh dial and return to Ready")
}

func TestSubchannelReportErrorNoopWhenNotReady(t *testing.T) {
	sc := subchannel.New(subchannel.Config{
		Address:     "127.0.0.1:0",
		BaseBackoff: time.Hour,
		MaxBackoff:  time.Hour,
		Dial: func(ctx context.Context, address string, rt http.RoundTripper) error {
			return errors.New("never connects")
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc.Start(ctx)
	require.Eventually(t, func() bool { return sc.State() == subchannel.TransientFailure }, time.Second, time.Millisecond)

	// Reporting an error against a subchannel that isn't Ready must not
	// panic or deadlock; it's simply a no-op.
	sc.ReportError(errors.New("ignored"))
	assert.Equal(t, subchannel.TransientFailure, sc.State())
}

func TestSubchannelStopTransitionsToShutdown(t *testing.T) {
	sc := subchannel.New(subchannel.Config{
		Address: "127.0.0.1:0",
		Dial: func(ctx context.Context, address string, rt http.RoundTripper) error {
			return nil
		},
	})
	ctx := context.Background()
	sc.Start(ctx)
	require.Eventually(t, func() bool { return sc.State() == subchannel.Ready }, time.Second, time.Millisecond)

	sc.Stop()
	require.Eventually(t, func() bool { return sc.State() == subchannel.Shutdown }, time.Second, time.Millisecond)
}
