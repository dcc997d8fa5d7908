package codec

import "io"

// Identity is the no-op compressor: compressed=0 on the wire.
type Identity struct{}

// Name implements Compressor.
func (Identity) Name() string { return "identity" }

// Compress implements Compressor by writing p unchanged.
func (Identity) Compress(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}

// Decompress implements Compressor by reading r unchanged.
func (Identity) Decompress(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}
