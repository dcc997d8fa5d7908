package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalrpc/nodal/codec"
)

func TestGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte("the quick brown fox jumps over the lazy dog, repeated, repeated, repeated")
	require.NoError(t, codec.Gzip{}.Compress(&buf, want))

	got, err := codec.Gzip{}.Decompress(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIdentityRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte("passthrough")
	require.NoError(t, codec.Identity{}.Compress(&buf, want))

	got, err := codec.Identity{}.Decompress(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNegotiatePicksFirstSupported(t *testing.T) {
	c := codec.Negotiate([]string{"snappy", "gzip", "identity"})
	assert.Equal(t, "gzip", c.Name())
}

func TestNegotiateFallsBackToIdentity(t *testing.T) {
	c := codec.Negotiate([]string{"snappy"})
	assert.Equal(t, "identity", c.Name())
}

func TestJSONMessageCodecRoundTrip(t *testing.T) {
	type point struct {
		X, Y int32
	}
	jc := codec.JSONMessageCodec{}
	b, err := jc.Marshal(&point{X: 1, Y: 2})
	require.NoError(t, err)

	var got point
	require.NoError(t, jc.Unmarshal(b, &got))
	assert.Equal(t, point{X: 1, Y: 2}, got)
}
