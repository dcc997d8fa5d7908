package balancer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/balancer"
	"github.com/nodalrpc/nodal/callctx"
)

type fakeEndpoint string

func (f fakeEndpoint) Address() string { return string(f) }

func endpoints(addrs ...string) []balancer.Endpoint {
	out := make([]balancer.Endpoint, len(addrs))
	for i, a := range addrs {
		out[i] = fakeEndpoint(a)
	}
	return out
}

func TestRoundRobinVisitsEachExactlyOncePerCycle(t *testing.T) {
	rr := &balancer.RoundRobin{}
	ready := endpoints("a", "b", "c")

	seen := map[string]int{}
	for i := 0; i < len(ready)*3; i++ {
		e, ok := rr.Pick(context.Background(), ready)
		require.True(t, ok)
		seen[e.Address()]++
	}
	assert.Equal(t, map[string]int{"a": 3, "b": 3, "c": 3}, seen)
}

func TestRoundRobinEmptyReadyReturnsFalse(t *testing.T) {
	rr := &balancer.RoundRobin{}
	_, ok := rr.Pick(context.Background(), nil)
	assert.False(t, ok)
}

func TestHashIsStableForSameKey(t *testing.T) {
	h := balancer.Hash{}
	ready := endpoints("a", "b", "c", "d")
	ctx := callctx.WithHashKey(context.Background(), "tenant-42")

	first, ok := h.Pick(ctx, ready)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		next, ok := h.Pick(ctx, ready)
		require.True(t, ok)
		assert.Equal(t, first.Address(), next.Address())
	}
}

func TestDirectPicksConfiguredAddress(t *testing.T) {
	d := balancer.Direct{Address: "b"}
	e, ok := d.Pick(context.Background(), endpoints("a", "b", "c"))
	require.True(t, ok)
	assert.Equal(t, "b", e.Address())
}

func TestDirectMissingAddressReturnsFalse(t *testing.T) {
	d := balancer.Direct{Address: "z"}
	_, ok := d.Pick(context.Background(), endpoints("a", "b"))
	assert.False(t, ok)
}

func TestClaimRenewalKeepsSameEndpoint(t *testing.T) {
	c := balancer.NewClaim(0)
	ready := endpoints("a", "b", "c")
	ctx := callctx.WithHashKey(context.Background(), "caller-1")

	first, ok := c.Pick(ctx, ready)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		next, ok := c.Pick(ctx, ready)
		require.True(t, ok)
		assert.Equal(t, first.Address(), next.Address())
	}
}

func TestClaimFallsBackToFirstReadyWithoutHashKey(t *testing.T) {
	c := balancer.NewClaim(0)
	e, ok := c.Pick(context.Background(), endpoints("a", "b"))
	require.True(t, ok)
	assert.Equal(t, "a", e.Address())
}

func TestClaimBlocksContenderUntilReleased(t *testing.T) {
	c := balancer.NewClaim(time.Minute)
	ready := endpoints("solo")
	ctx1 := callctx.WithHashKey(context.Background(), "caller-1")
	ctx2 := callctx.WithHashKey(context.Background(), "caller-2")

	_, ok := c.Pick(ctx1, ready)
	require.True(t, ok)

	picked := make(chan bool, 1)
	go func() {
		_, ok := c.Pick(ctx2, ready)
		picked <- ok
	}()

	select {
	case <-picked:
		t.Fatal("second caller should block while first holds the lease")
	case <-time.After(50 * time.Millisecond):
	}

	c.Release("caller-1")

	select {
	case ok := <-picked:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("second caller never unblocked after Release")
	}
}

func TestClaimContenderGivesUpOnContextDeadline(t *testing.T) {
	c := balancer.NewClaim(time.Minute)
	ready := endpoints("solo")
	ctx1 := callctx.WithHashKey(context.Background(), "caller-1")

	_, ok := c.Pick(ctx1, ready)
	require.True(t, ok)

	ctx2, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ctx2 = callctx.WithHashKey(ctx2, "caller-2")

	_, ok = c.Pick(ctx2, ready)
	assert.False(t, ok)
}
