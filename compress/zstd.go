package compress

import (
	"fmt"

	"github.com/DataDog/zstd"
)

var _ Compressor = (*zstdCompressor)(nil)

type zstdCompressor struct {
	maxSize int64
}

// NewZstdCompressor returns a zstd compressor at the default level.
// Decompression refuses payloads larger than maxSize.
func NewZstdCompressor(maxSize int64) Compressor {
	return &zstdCompressor{maxSize: maxSize}
}

func (z *zstdCompressor) Compress(msg []byte) ([]byte, error) {
	return zstd.Compress(nil, msg)
}

func (z *zstdCompressor) Decompress(msg []byte) ([]byte, error) {
	decompressed, err := zstd.Decompress(nil, msg)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if int64(len(decompressed)) > z.maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrDecompressedMsgTooLarge, len(decompressed), z.maxSize)
	}
	return decompressed, nil
}
