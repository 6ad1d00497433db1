package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

var _ Compressor = (*gzipCompressor)(nil)

type gzipCompressor struct {
	maxSize int64
}

// NewGzipCompressor returns a gzip compressor. Decompression refuses payloads
// larger than maxSize.
func NewGzipCompressor(maxSize int64) Compressor {
	return &gzipCompressor{maxSize: maxSize}
}

func (g *gzipCompressor) Compress(msg []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(msg); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *gzipCompressor) Decompress(msg []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(msg))
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	defer r.Close()

	// read one byte past the limit to detect oversize payloads
	decompressed, err := io.ReadAll(io.LimitReader(r, g.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(decompressed)) > g.maxSize {
		return nil, fmt.Errorf("%w: > %d", ErrDecompressedMsgTooLarge, g.maxSize)
	}
	return decompressed, nil
}
