package types

import (
	"fmt"

	"github.com/witnesslabs/blockstats/codec"
	"github.com/witnesslabs/blockstats/common"
)

// Block pairs a header with its extrinsic payload.
type Block struct {
	Header    Header        `json:"header"`
	Extrinsic ExtrinsicData `json:"extrinsic"`
}

// Bytes returns the canonical encoding of the full block. Its length is the
// block_len reported in statistics.
func (b *Block) Bytes() ([]byte, error) {
	enc, err := codec.Encode(*b)
	if err != nil {
		return nil, fmt.Errorf("encode block: %w", err)
	}
	return enc, nil
}

// EncodedSize returns the length of the canonical block encoding.
func (b *Block) EncodedSize() (uint64, error) {
	enc, err := b.Bytes()
	if err != nil {
		return 0, err
	}
	return uint64(len(enc)), nil
}

// NumExtrinsics returns the number of extrinsics the block carries.
func (b *Block) NumExtrinsics() int {
	return b.Extrinsic.Count()
}

// Hash returns the block identifier, the hash of the encoded header.
func (b *Block) Hash() common.Hash {
	return b.Header.Hash()
}

// DecodeBlock parses a canonically encoded block.
func DecodeBlock(data []byte) (*Block, error) {
	var b Block
	if err := codec.Decode(data, &b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &b, nil
}
