// Package compress provides the byte compressors used to measure compressed
// witness sizes.
package compress

import "errors"

var ErrDecompressedMsgTooLarge = errors.New("decompressed payload exceeds limit")

// Compressor compresses and decompresses byte payloads.
type Compressor interface {
	Compress([]byte) ([]byte, error)
	Decompress([]byte) ([]byte, error)
}
