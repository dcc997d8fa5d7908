// Package resolver implements target-to-endpoint resolution from spec
// §4.9/§9: a pluggable Resolve(target) that package channel polls on a
// refresh interval, diffing the returned set against its current
// subchannels.
package resolver

import "context"

// Endpoint is one resolved address a channel should maintain a
// subchannel for.
type Endpoint struct {
	Address string
}

// Resolver maps a target string to the current set of endpoints.
type Resolver interface {
	Resolve(ctx context.Context, target string) ([]Endpoint, error)
}

// Static is a pass-through Resolver for a fixed address list, the
// default when a channel is built without service discovery, per spec
// §9 ("a static list resolver is the default; pluggable for DNS or a
// service registry").
type Static struct {
	Endpoints []Endpoint
}

// Resolve implements Resolver.
func (s Static) Resolve(_ context.Context, _ string) ([]Endpoint, error) {
	out := make([]Endpoint, len(s.Endpoints))
	copy(out, s.Endpoints)
	return out, nil
}

// Diff compares a previous and next endpoint set, returning the
// addresses to add and to remove, so package channel only tears down
// and stands up the subchannels that actually changed.
func Diff(prev, next []Endpoint) (added, removed []Endpoint) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, e := range prev {
		prevSet[e.Address] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, e := range next {
		nextSet[e.Address] = struct{}{}
	}

	for _, e := range next {
		if _, ok := prevSet[e.Address]; !ok {
			added = append(added, e)
		}
	}
	for _, e := range prev {
		if _, ok := nextSet[e.Address]; !ok {
			removed = append(removed, e)
		}
	}
	return added, removed
}
