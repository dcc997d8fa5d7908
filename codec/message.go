package codec

import (
	"encoding/json"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// MessageCodec marshals/unmarshals a user message type to/from bytes.
// Spec §1 treats this as an external collaborator produced by a code
// generator from .proto files; nodal ships two implementations a
// generator could target (ProtoMessageCodec) or that a hand-rolled
// example service can use directly (JSONMessageCodec). Package registry's
// method descriptors hold only Decode/Encode functions (registry.Decoder,
// registry.Encoder), never a concrete marshaler.
type MessageCodec interface {
	Marshal(msg any) ([]byte, error)
	Unmarshal(b []byte, msg any) error
}

// ProtoMessageCodec marshals via google.golang.org/protobuf/proto, the
// binding a real .proto-derived code generator would emit.
type ProtoMessageCodec struct{}

// Marshal implements MessageCodec.
func (ProtoMessageCodec) Marshal(msg any) ([]byte, error) {
	pm, ok := msg.(proto.Message)
	if !ok {
		return nil, errors.Errorf("codec: %T does not implement proto.Message", msg)
	}
	b, err := proto.Marshal(pm)
	return b, errors.Wrap(err, "protocodec: marshal")
}

// Unmarshal implements MessageCodec.
func (ProtoMessageCodec) Unmarshal(b []byte, msg any) error {
	pm, ok := msg.(proto.Message)
	if !ok {
		return errors.Errorf("codec: %T does not implement proto.Message", msg)
	}
	return errors.Wrap(proto.Unmarshal(b, pm), "protocodec: unmarshal")
}

// JSONMessageCodec marshals via encoding/json. No .proto-to-Go generator
// runs in this repo's build, so the bundled example service (package
// internal/exampleservice) is hand-written against this codec instead of
// ProtoMessageCodec; it is not part of the framework's intended public
// message-coding path, which is ProtoMessageCodec.
type JSONMessageCodec struct{}

// Marshal implements MessageCodec.
func (JSONMessageCodec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	return b, errors.Wrap(err, "jsoncodec: marshal")
}

// Unmarshal implements MessageCodec.
func (JSONMessageCodec) Unmarshal(b []byte, msg any) error {
	return errors.Wrap(json.Unmarshal(b, msg), "jsoncodec: unmarshal")
}
