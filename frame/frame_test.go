package frame_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/codec"
	"github.com/nodalrpc/nodal/frame"
)

func TestRoundTripIdentity(t *testing.T) {
	var buf bytes.Buffer
	w := frame.NewWriter(&buf, codec.Identity{})
	require.NoError(t, w.Write([]byte("hello")))
	require.NoError(t, w.Write([]byte("world")))

	r := frame.NewReader(&buf, codec.Identity{}, 0)
	m1, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(m1.Payload))

	m2, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "world", string(m2.Payload))

	_, err = r.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRoundTripGzip(t *testing.T) {
	var buf bytes.Buffer
	w := frame.NewWriter(&buf, codec.Gzip{})
	payload := []byte("compressible payload compressible payload compressible payload")
	require.NoError(t, w.Write(payload))

	r := frame.NewReader(&buf, codec.Gzip{}, 0)
	m, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, payload, m.Payload)
}

func TestOversizeMessageIsResourceExhausted(t *testing.T) {
	var buf bytes.Buffer
	w := frame.NewWriter(&buf, codec.Identity{})
	require.NoError(t, w.Write(make([]byte, 100)))

	r := frame.NewReader(&buf, codec.Identity{}, 10)
	_, err := r.ReadMessage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ResourceExhausted")
}

func TestPartialFrameIsUnexpectedEOF(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 10, 'a', 'b'})
	r := frame.NewReader(buf, codec.Identity{}, 0)
	_, err := r.ReadMessage()
	require.Error(t, err)
}
