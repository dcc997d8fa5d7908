// Package balancer implements the pick strategies from spec §4.8/§9:
// given the current set of ready subchannels, choose one for a call.
// Strategies are pure functions of (subchannels, call context) plus
// whatever private state they keep (a counter, a hash, a lease table),
// never touching the network themselves.
package balancer

import (
	"context"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/nodalrpc/nodal/callctx"
)

// Endpoint is the minimal subchannel-identifying view a Balancer needs;
// package channel's concrete subchannel handle satisfies it.
type Endpoint interface {
	Address() string
}

// Picker selects one of the ready endpoints for a call, or returns
// (nil, false) if none is currently pickable (e.g. every lease is held,
// for Claim).
type Picker interface {
	Pick(ctx context.Context, ready []Endpoint) (Endpoint, bool)
}

// Releaser is implemented by pickers that hold exclusive per-caller
// state a caller must give back explicitly, such as Claim's leases.
// Pickers without that concept (RoundRobin, Random, Hash, Direct) don't
// implement it, so Channel.Release is a no-op against them.
type Releaser interface {
	Release(key string)
}

// RoundRobin cycles through ready endpoints, visiting each exactly once
// per len(ready) consecutive picks, per spec §8 invariant 8.
type RoundRobin struct {
	next atomic.Uint64
}

// Pick implements Picker.
func (r *RoundRobin) Pick(_ context.Context, ready []Endpoint) (Endpoint, bool) {
	if len(ready) == 0 {
		return nil, false
	}
	i := r.next.Add(1) - 1
	return ready[int(i)%len(ready)], true
}

// Random picks uniformly among ready endpoints using a supplied source,
// avoiding math/rand's global lock under concurrent picks.
type Random struct {
	Source func() uint64
}

// Pick implements Picker.
func (r *Random) Pick(_ context.Context, ready []Endpoint) (Endpoint, bool) {
	if len(ready) == 0 {
		return nil, false
	}
	src := r.Source
	if src == nil {
		src = defaultSource
	}
	return ready[int(src()%uint64(len(ready)))], true
}

// Hash deterministically maps callctx.HashKey(ctx) onto one ready
// endpoint via xxhash, so repeated calls with the same key land on the
// same endpoint as long as the ready set is unchanged.
type Hash struct{}

// Pick implements Picker.
func (Hash) Pick(ctx context.Context, ready []Endpoint) (Endpoint, bool) {
	if len(ready) == 0 {
		return nil, false
	}
	key := callctx.HashKey(ctx)
	sum := xxhash.Sum64String(key)
	return ready[int(sum%uint64(len(ready)))], true
}

// Direct always picks the single configured endpoint by address,
// erroring (returning false) if it is not in the ready set.
type Direct struct {
	Address string
}

// Pick implements Picker.
func (d Direct) Pick(_ context.Context, ready []Endpoint) (Endpoint, bool) {
	for _, e := range ready {
		if e.Address() == d.Address {
			return e, true
		}
	}
	return nil, false
}
