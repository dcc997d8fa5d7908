// Package codec implements the pluggable per-message compression layer
// described in spec §4.2 ("Message Codec"). It is deliberately separate
// from marshaling a user's message type to bytes, which spec §1 delegates
// to an external message codec (the generated method descriptor's
// Decode/Encode functions, see package registry) -- this package only
// ever sees already-marshaled bytes.
package codec

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Compressor compresses and decompresses a single message payload for a
// negotiated grpc-encoding name.
type Compressor interface {
	// Name is the wire value used in grpc-encoding / grpc-accept-encoding.
	Name() string
	// Compress writes the compressed form of p to w.
	Compress(w io.Writer, p []byte) error
	// Decompress reads and decompresses a payload previously produced by
	// Compress.
	Decompress(r io.Reader) ([]byte, error)
}

var (
	mu       sync.RWMutex
	registry = map[string]Compressor{}
)

// RegisterCompressor adds c to the process-wide compressor table, keyed
// by c.Name(). The table is copy-on-write under a sync.RWMutex: readers
// (Lookup, Names) take the read lock, so they wait only while a writer
// swaps in the new map, and always see an internally-consistent map.
func RegisterCompressor(c Compressor) {
	mu.Lock()
	defer mu.Unlock()
	next := make(map[string]Compressor, len(registry)+1)
	for k, v := range registry {
		next[k] = v
	}
	next[c.Name()] = c
	registry = next
}

// Lookup returns the compressor registered under name, if any.
func Lookup(name string) (Compressor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// Names returns every registered compressor name, suitable for a
// grpc-accept-encoding header.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	return names
}

// ErrUnsupportedEncoding names a grpc-encoding with no registered
// compressor. No function in this package returns it: Negotiate falls
// back to Identity, and package server answers an unregistered inbound
// grpc-encoding with UNIMPLEMENTED and grpc-accept-encoding populated.
var ErrUnsupportedEncoding = errors.New("codec: unsupported grpc-encoding")

// Negotiate picks the first name in csv (a grpc-accept-encoding value)
// that has a registered compressor, returning Identity{} if csv is empty
// or nothing matches and identity is always acceptable.
func Negotiate(csv []string) Compressor {
	for _, name := range csv {
		if c, ok := Lookup(name); ok {
			return c
		}
	}
	id, _ := Lookup(Identity{}.Name())
	return id
}

func init() {
	RegisterCompressor(Identity{})
	RegisterCompressor(Gzip{})
}
