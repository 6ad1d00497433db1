package compress

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMaxSize = 1 << 20

func TestCompressDecompress(t *testing.T) {
	compressors := map[string]Compressor{
		"zstd": NewZstdCompressor(testMaxSize),
		"gzip": NewGzipCompressor(testMaxSize),
	}

	payloads := map[string][]byte{
		"small":      []byte("witness"),
		"empty":      {},
		"repetitive": bytes.Repeat([]byte{0xab, 0xcd}, 4096),
	}

	for name, c := range compressors {
		for pname, payload := range payloads {
			t.Run(name+"/"+pname, func(t *testing.T) {
				compressed, err := c.Compress(payload)
				require.NoError(t, err)

				decompressed, err := c.Decompress(compressed)
				require.NoError(t, err)
				require.Equal(t, payload, append([]byte{}, decompressed...))
			})
		}
	}
}

func TestCompressShrinksRedundantInput(t *testing.T) {
	c := NewZstdCompressor(testMaxSize)
	payload := bytes.Repeat([]byte("node"), 8192)
	compressed, err := c.Compress(payload)
	require.NoError(t, err)
	require.Less(t, len(compressed), len(payload))
}

func TestDecompressSizeLimit(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, 4096)
	for name, c := range map[string]Compressor{
		"zstd": NewZstdCompressor(64),
		"gzip": NewGzipCompressor(64),
	} {
		t.Run(name, func(t *testing.T) {
			compressed, err := c.Compress(payload)
			require.NoError(t, err)
			_, err = c.Decompress(compressed)
			require.True(t, errors.Is(err, ErrDecompressedMsgTooLarge), "got %v", err)
		})
	}
}

func TestDecompressGarbage(t *testing.T) {
	c := NewZstdCompressor(testMaxSize)
	_, err := c.Decompress([]byte("definitely not a zstd frame"))
	require.Error(t, err)
}
