// Package registry implements the Service Registry / Dispatcher from
// spec §4.5: a read-only-after-startup map from "/package.Service/Method"
// to a typed handler plus its RPC shape, built once at server startup
// (spec §5: "The service registry is read-only after startup (no locks
// on the dispatch path)").
package registry

import (
	"context"
	"fmt"

	"github.com/nodalrpc/nodal/call"
	"github.com/nodalrpc/nodal/stream"
)

// UnaryHandlerFunc is a user's unary method implementation: decode the
// request (already done by the caller via Decode), run business logic,
// return a response to encode.
type UnaryHandlerFunc func(ctx context.Context, srv any, req any) (any, error)

// StreamHandlerFunc is a user's streaming method implementation, given a
// stream.Handle to Send/Recv on.
type StreamHandlerFunc func(srv any, ss stream.Handle) error

// Decoder unmarshals a wire payload into v, typically backed by a
// codec.MessageCodec as a generated method descriptor would bind it;
// Encoder is its response-side mirror. NewRequest allocates the concrete
// request value Decoder fills in.
type Decoder func(b []byte, v any) error
type Encoder func(v any) ([]byte, error)
type NewRequest func() any

// MethodDesc is one unary method entry in a ServiceDesc, mirroring the
// shape of google.golang.org/grpc's grpc.MethodDesc / the StreamDesc
// convention seen throughout the retrieved corpus's proxy/handler code.
type MethodDesc struct {
	MethodName string
	Handler    UnaryHandlerFunc
	NewRequest NewRequest
	Decode     Decoder
	Encode     Encoder
}

// StreamDesc is one streaming method entry.
type StreamDesc struct {
	StreamName    string
	Handler       StreamHandlerFunc
	ClientStreams bool
	ServerStreams bool
	NewRequest    NewRequest
	Decode        Decoder
	Encode        Encoder
}

// ServiceDesc groups a service's methods, the unit a code generator
// emits per spec §6 ("a message module and a handler interface
// descriptor listing, for each method, its canonical path, shape, and
// codec bindings").
type ServiceDesc struct {
	ServiceName string
	Methods     []MethodDesc
	Streams     []StreamDesc
}

// Entry is one resolved dispatch target: the method's Call shape plus
// its handler and codec bindings.
type Entry struct {
	FullMethod string
	Shape      call.Shape
	Server     any
	Unary      UnaryHandlerFunc
	Stream     StreamHandlerFunc
	NewRequest NewRequest
	Decode     Decoder
	Encode     Encoder
}

// Registry is the read-only-after-Build path table. The zero value is
// not usable; construct with NewBuilder.
type Registry struct {
	entries map[string]*Entry
}

// Lookup returns the Entry for path ("/package.Service/Method"), or
// (nil, false) on a miss, which the dispatcher maps to UNIMPLEMENTED.
func (r *Registry) Lookup(path string) (*Entry, bool) {
	e, ok := r.entries[path]
	return e, ok
}

// Builder accumulates ServiceDesc registrations before a single,
// immutable Registry is built at server startup.
type Builder struct {
	entries map[string]*Entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{entries: map[string]*Entry{}}
}

// Register adds every method/stream in desc, bound to server srv, using
// "/ServiceName/MethodName" as the path, per spec §3.
func (b *Builder) Register(desc *ServiceDesc, srv any) error {
	for _, m := range desc.Methods {
		path := fmt.Sprintf("/%s/%s", desc.ServiceName, m.MethodName)
		if _, dup := b.entries[path]; dup {
			return fmt.Errorf("registry: duplicate method %s", path)
		}
		b.entries[path] = &Entry{
			FullMethod: path,
			Shape:      call.Unary,
			Server:     srv,
			Unary:      m.Handler,
			NewRequest: m.NewRequest,
			Decode:     m.Decode,
			Encode:     m.Encode,
		}
	}
	for _, s := range desc.Streams {
		path := fmt.Sprintf("/%s/%s", desc.ServiceName, s.StreamName)
		if _, dup := b.entries[path]; dup {
			return fmt.Errorf("registry: duplicate method %s", path)
		}
		b.entries[path] = &Entry{
			FullMethod: path,
			Shape:      shapeOf(s.ClientStreams, s.ServerStreams),
			Server:     srv,
			Stream:     s.Handler,
			NewRequest: s.NewRequest,
			Decode:     s.Decode,
			Encode:     s.Encode,
		}
	}
	return nil
}

func shapeOf(clientStreams, serverStreams bool) call.Shape {
	switch {
	case clientStreams && serverStreams:
		return call.BidiStream
	case clientStreams:
		return call.ClientStream
	case serverStreams:
		return call.ServerStream
	default:
		return call.Unary
	}
}

// Build freezes the accumulated registrations into an immutable
// Registry. The Builder must not be reused afterward.
func (b *Builder) Build() *Registry {
	frozen := make(map[string]*Entry, len(b.entries))
	for k, v := range b.entries {
		frozen[k] = v
	}
	return &Registry{entries: frozen}
}
