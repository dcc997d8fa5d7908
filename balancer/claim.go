package balancer

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/nodalrpc/nodal/callctx"
)

// DefaultLeaseDuration is the lease window a Claim balancer grants per
// endpoint when unconfigured, resolving spec's Open Question on the
// claim balancer's contention policy: a caller holds exclusive use of
// one endpoint for up to this long, renewable by continuing to issue
// calls against it, and a contending caller blocks (subject to its own
// call deadline) rather than failing fast.
const DefaultLeaseDuration = 30 * time.Second

// lease records which caller key currently owns an endpoint address, and
// the point at which ownership lapses if never explicitly released.
type lease struct {
	holder  string
	expires time.Time
}

// Claim grants exclusive, time-leased ownership of one endpoint per
// caller-supplied hash key (callctx.HashKey). A caller's sticky target is
// the same xxhash-over-the-ready-set mapping package Hash uses; what
// Claim adds is that while one caller holds the lease on that endpoint, a
// different caller whose key hashes to the same endpoint blocks in Pick
// (subject to ctx's deadline) rather than being handed the endpoint
// anyway, per spec §4.9's "exclusive lease ... until released".
type Claim struct {
	leaseDuration time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	leases map[string]lease // endpoint address -> current holder
}

// NewClaim builds a Claim balancer with the given lease duration; zero
// means DefaultLeaseDuration.
func NewClaim(leaseDuration time.Duration) *Claim {
	if leaseDuration <= 0 {
		leaseDuration = DefaultLeaseDuration
	}
	c := &Claim{leaseDuration: leaseDuration, leases: map[string]lease{}}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Pick implements Picker. A caller without a hash key falls through to
// the first ready endpoint, unleased, so a misconfigured caller still
// gets service instead of an opaque failure. Otherwise it blocks until
// its sticky-hashed endpoint is unheld, already held by this same key
// (a renewal), or its lease has lapsed -- or until ctx is done, in which
// case Pick reports failure rather than handing out a held endpoint.
func (c *Claim) Pick(ctx context.Context, ready []Endpoint) (Endpoint, bool) {
	if len(ready) == 0 {
		return nil, false
	}
	key := callctx.HashKey(ctx)
	if key == "" {
		return ready[0], true
	}

	target := ready[int(xxhash.Sum64String(key)%uint64(len(ready)))]
	addr := target.Address()

	// sync.Cond has no context-aware wait; a goroutine rebroadcasts on
	// ctx cancellation so a blocked waiter re-checks and exits promptly
	// instead of waiting out the full lease window.
	stop := make(chan struct{})
	defer close(stop)
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				c.mu.Lock()
				c.cond.Broadcast()
				c.mu.Unlock()
			case <-stop:
			}
		}()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		l, held := c.leases[addr]
		now := time.Now()
		if !held || l.holder == key || now.After(l.expires) {
			c.leases[addr] = lease{holder: key, expires: now.Add(c.leaseDuration)}
			return target, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		default:
		}
		c.cond.Wait()
	}
}

// Release relinquishes key's claim on whichever endpoint it currently
// holds, waking any caller blocked waiting for it, per spec §4.9's
// "released explicitly via Channel.Release". A no-op if key holds no
// lease.
func (c *Claim) Release(key string) {
	c.mu.Lock()
	for addr, l := range c.leases {
		if l.holder == key {
			delete(c.leases, addr)
		}
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}
