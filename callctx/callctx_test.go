package callctx_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/callctx"
)

func TestParseTimeoutUnits(t *testing.T) {
	cases := map[string]time.Duration{
		"50m": 50 * time.Millisecond,
		"1S":  time.Second,
		"2H":  2 * time.Hour,
		"3M":  3 * time.Minute,
		"4u":  4 * time.Microsecond,
		"5n":  5 * time.Nanosecond,
	}
	for in, want := range cases {
		got, err := callctx.ParseTimeout(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseTimeoutRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "5", "X5", "-5S"} {
		_, err := callctx.ParseTimeout(bad)
		assert.Error(t, err, bad)
	}
}

func TestWithTimeoutDerivesEarlierDeadline(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), time.Hour)
	defer cancelParent()

	ctx, cancel, err := callctx.WithTimeout(parent, "50m")
	require.NoError(t, err)
	defer cancel()

	d, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, d.Before(time.Now().Add(time.Hour)))
}

func TestOutgoingMetadataAccumulates(t *testing.T) {
	ctx := callctx.WithOutgoing(context.Background())
	require.NoError(t, callctx.AppendOutgoing(ctx, "x-a", "1"))
	require.NoError(t, callctx.AppendOutgoing(ctx, "x-a", "2"))

	md := callctx.Outgoing(ctx)
	assert.Equal(t, []string{"1", "2"}, md.Get("x-a"))
}
