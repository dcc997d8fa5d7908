// Package exampleservice is a hand-written service used by package
// tests and the end-to-end test: no .proto generator runs in this
// repo's build, so its request/response types are plain Go structs
// coded with codec.JSONMessageCodec instead of a generated
// ProtoMessageCodec binding.
package exampleservice

import (
	"context"
	"io"

	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/registry"
	"github.com/nodalrpc/nodal/stream"
)

// EchoRequest/EchoResponse back the unary Say method.
type EchoRequest struct {
	Message string `json:"message"`
}

type EchoResponse struct {
	Message string `json:"message"`
}

// Feature/ListFeaturesRequest back the server-streaming ListFeatures
// method.
type Feature struct {
	Name string `json:"name"`
}

type ListFeaturesRequest struct {
	Prefix string `json:"prefix"`
}

// Point/PointSummary back the client-streaming Upload method.
type Point struct {
	X, Y int32 `json:"x"`
}

type PointSummary struct {
	Count int32 `json:"count"`
}

// RouteNote backs the bidi-streaming Chat method.
type RouteNote struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// Echo implements a minimal four-shape service exercising every RPC
// shape from spec §2.
type Echo struct {
	Features []Feature
}

func (e *Echo) say(ctx context.Context, req *EchoRequest) (*EchoResponse, error) {
	return &EchoResponse{Message: req.Message}, nil
}

func (e *Echo) listFeatures(req *ListFeaturesRequest, ss stream.Handle) error {
	for _, f := range e.Features {
		if req.Prefix != "" && !hasPrefix(f.Name, req.Prefix) {
			continue
		}
		if err := ss.Send(&f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Echo) upload(ss stream.Handle) error {
	var count int32
	for {
		var p Point
		err := ss.Recv(&p)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		count++
	}
	return ss.Send(&PointSummary{Count: count})
}

func (e *Echo) chat(ss stream.Handle) error {
	for {
		var note RouteNote
		err := ss.Recv(&note)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ss.Send(&note); err != nil {
			return err
		}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// codecImpl is the message codec every method in NewServiceDesc's
// descriptor is bound to, standing in for generated protobuf bindings.
var codecImpl codec.MessageCodec = codec.JSONMessageCodec{}

// NewServiceDesc returns the registry descriptor for an Echo instance.
func NewServiceDesc(srv *Echo) (*registry.ServiceDesc, any) {
	return &registry.ServiceDesc{
		ServiceName: "nodal.example.Echo",
		Methods: []registry.MethodDesc{
			{
				MethodName: "Say",
				NewRequest: func() any { return &EchoRequest{} },
				Decode:     codecImpl.Unmarshal,
				Encode:     codecImpl.Marshal,
				Handler: func(ctx context.Context, s any, req any) (any, error) {
					return s.(*Echo).say(ctx, req.(*EchoRequest))
				},
			},
		},
		Streams: []registry.StreamDesc{
			{
				StreamName:    "ListFeatures",
				ServerStreams: true,
				NewRequest:    func() any { return &ListFeaturesRequest{} },
				Decode:        codecImpl.Unmarshal,
				Encode:        codecImpl.Marshal,
				Handler: func(s any, ss stream.Handle) error {
					var req ListFeaturesRequest
					if err := ss.Recv(&req); err != nil && err != io.EOF {
						return err
					}
					return s.(*Echo).listFeatures(&req, ss)
				},
			},
			{
				StreamName:    "Upload",
				ClientStreams: true,
				NewRequest:    func() any { return &Point{} },
				Decode:        codecImpl.Unmarshal,
				Encode:        codecImpl.Marshal,
				Handler: func(s any, ss stream.Handle) error {
					return s.(*Echo).upload(ss)
				},
			},
			{
				StreamName:    "Chat",
				ClientStreams: true,
				ServerStreams: true,
				NewRequest:    func() any { return &RouteNote{} },
				Decode:        codecImpl.Unmarshal,
				Encode:        codecImpl.Marshal,
				Handler: func(s any, ss stream.Handle) error {
					return s.(*Echo).chat(ss)
				},
			},
		},
	}, srv
}
