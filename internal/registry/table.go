// Package registry (internal) implements the process-wide named lookup
// table for channels and servers from spec §9: a process may register
// several named Channels/Servers and look them up later (e.g. from a
// signal handler or admin endpoint) without threading a reference
// through every layer. No example in the retrieved corpus keeps a
// registry quite this shape, so it is built directly on sync/atomic's
// copy-on-write pointer-swap idiom (package codec's compressor table is
// also copy-on-write, but under a sync.RWMutex), rather than reaching for
// a third-party registry library -- there is no such library in the
// retrieved corpus to ground this specific concern on. Package channel
// and package server do not register themselves in a Table.
package registry

import "sync/atomic"

// Table is a copy-on-write named registry of values of type T. Reads
// (Get) never block a writer and vice versa.
type Table[T any] struct {
	snapshot atomic.Pointer[map[string]T]
}

// NewTable returns an empty Table.
func NewTable[T any]() *Table[T] {
	t := &Table[T]{}
	empty := map[string]T{}
	t.snapshot.Store(&empty)
	return t
}

// Register adds or replaces the entry named name.
func (t *Table[T]) Register(name string, value T) {
	for {
		old := t.snapshot.Load()
		next := make(map[string]T, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[name] = value
		if t.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Unregister removes the entry named name, if present.
func (t *Table[T]) Unregister(name string) {
	for {
		old := t.snapshot.Load()
		if _, ok := (*old)[name]; !ok {
			return
		}
		next := make(map[string]T, len(*old))
		for k, v := range *old {
			if k != name {
				next[k] = v
			}
		}
		if t.snapshot.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Get returns the entry named name, if present.
func (t *Table[T]) Get(name string) (T, bool) {
	m := *t.snapshot.Load()
	v, ok := m[name]
	return v, ok
}

// Names returns every registered name.
func (t *Table[T]) Names() []string {
	m := *t.snapshot.Load()
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names
}
