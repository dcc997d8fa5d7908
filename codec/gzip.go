package codec

import (
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Gzip compresses payloads with gzip, backed by klauspost/compress
// rather than the standard library's compress/gzip -- the gzip
// implementation the rest of the retrieved corpus actually ships
// (keploy's indirect dependency), and a faster drop-in replacement.
type Gzip struct{}

// Name implements Compressor.
func (Gzip) Name() string { return "gzip" }

var writerPool = sync.Pool{
	New: func() any { return gzip.NewWriter(io.Discard) },
}

// Compress implements Compressor.
func (Gzip) Compress(w io.Writer, p []byte) error {
	gz := writerPool.Get().(*gzip.Writer)
	defer writerPool.Put(gz)
	gz.Reset(w)
	if _, err := gz.Write(p); err != nil {
		return errors.Wrap(err, "gzip: compress")
	}
	return errors.Wrap(gz.Close(), "gzip: flush")
}

// Decompress implements Compressor.
func (Gzip) Decompress(r io.Reader) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "gzip: open reader")
	}
	defer gz.Close()
	b, err := io.ReadAll(gz)
	if err != nil {
		return nil, errors.Wrap(err, "gzip: decompress")
	}
	return b, nil
}
