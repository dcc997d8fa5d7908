// Package frame implements the gRPC Length-Prefixed Message framing from
// spec §4.1: a 1-byte compression flag, a 4-byte big-endian length, and a
// payload of that many bytes, repeated for as many messages as the call
// carries in that direction.
package frame

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/status"
)

const headerLen = 5

// Message is one decoded length-prefixed frame: the raw (already
// decompressed) payload bytes for one gRPC message.
type Message struct {
	Payload []byte
}

// Writer frames and writes messages to an underlying byte stream,
// compressing with Compressor when it is not Identity. Each call to
// Write emits exactly one whole frame and flushes it; Writer never
// emits a partial frame.
type Writer struct {
	w          io.Writer
	compressor codec.Compressor
	flusher    interface{ Flush() error }
}

// NewWriter returns a Writer over w using compressor for payload
// compression. If w also implements an interface with a Flush() error
// method, Writer calls it after every frame to push the frame onto the
// wire promptly (the HTTP/2 layer still applies flow control).
func NewWriter(w io.Writer, compressor codec.Compressor) *Writer {
	fw := &Writer{w: w, compressor: compressor}
	if f, ok := w.(interface{ Flush() error }); ok {
		fw.flusher = f
	}
	return fw
}

// Write encodes and frames payload, then writes the frame to the
// underlying stream.
func (fw *Writer) Write(payload []byte) error {
	var body bytes.Buffer
	compressed := byte(0)
	if _, ok := fw.compressor.(codec.Identity); !ok && fw.compressor != nil {
		if err := fw.compressor.Compress(&body, payload); err != nil {
			return errors.Wrap(err, "frame: compress payload")
		}
		compressed = 1
	} else {
		body.Write(payload)
	}

	var header [headerLen]byte
	header[0] = compressed
	binary.BigEndian.PutUint32(header[1:], uint32(body.Len()))

	if _, err := fw.w.Write(header[:]); err != nil {
		return errors.Wrap(err, "frame: write header")
	}
	if _, err := fw.w.Write(body.Bytes()); err != nil {
		return errors.Wrap(err, "frame: write payload")
	}
	if fw.flusher != nil {
		if err := fw.flusher.Flush(); err != nil {
			return errors.Wrap(err, "frame: flush")
		}
	}
	return nil
}

// Reader reads length-prefixed frames from an underlying byte stream,
// enforcing maxReceiveMessageSize and decompressing with the compressor
// named by the frame's compression flag (looked up via codec.Lookup
// using the call's negotiated encoding name, supplied by the caller
// because the framing bit alone does not name the algorithm).
type Reader struct {
	r                     io.Reader
	compressor            codec.Compressor
	maxReceiveMessageSize int
}

// NewReader returns a Reader over r. compressor is the algorithm
// negotiated for this call's receive direction (grpc-encoding on the
// inbound side); maxReceiveMessageSize bounds the length field to guard
// against a malicious or buggy peer, per spec §4.1.
func NewReader(r io.Reader, compressor codec.Compressor, maxReceiveMessageSize int) *Reader {
	return &Reader{r: r, compressor: compressor, maxReceiveMessageSize: maxReceiveMessageSize}
}

// ErrMessageTooLarge describes a frame whose length field exceeds
// maxReceiveMessageSize. ReadMessage does not return it; it reports that
// case as a RESOURCE_EXHAUSTED status error instead.
var ErrMessageTooLarge = errors.New("frame: message exceeds max receive size")

// ReadMessage reads and decodes the next frame. It returns io.EOF when
// the stream has ended cleanly between frames (never mid-frame: a
// partial frame is surfaced as io.ErrUnexpectedEOF, which callers should
// map to UNAVAILABLE or INTERNAL per spec §4.1 depending on cause).
func (fr *Reader) ReadMessage() (*Message, error) {
	var header [headerLen]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.Wrap(io.ErrUnexpectedEOF, err.Error())
	}

	compressed := header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if fr.maxReceiveMessageSize > 0 && int(length) > fr.maxReceiveMessageSize {
		return nil, status.Newf(codes.ResourceExhausted,
			"received message larger than max (%d vs %d)", length, fr.maxReceiveMessageSize).Err()
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return nil, errors.Wrap(io.ErrUnexpectedEOF, err.Error())
	}

	if compressed == 0 {
		return &Message{Payload: body}, nil
	}

	if fr.compressor == nil {
		return nil, status.New(codes.Internal, "received compressed frame with no negotiated compressor").Err()
	}
	payload, err := fr.compressor.Decompress(bytes.NewReader(body))
	if err != nil {
		return nil, status.Newf(codes.Internal, "decompressing frame: %v", err).Err()
	}
	return &Message{Payload: payload}, nil
}
