package types

import (
	"fmt"

	"github.com/witnesslabs/blockstats/codec"
	"github.com/witnesslabs/blockstats/common"
)

// Header commits a block to its position in the chain. ParentStateRoot is the
// root of the state the block executes against, i.e. the posterior state root
// of the parent block.
type Header struct {
	ParentHash      common.Hash `json:"parent_hash"`
	ParentStateRoot common.Hash `json:"parent_state_root"`
	ExtrinsicHash   common.Hash `json:"extrinsic_hash"`
	Slot            uint32      `json:"slot"`
	AuthorIndex     uint16      `json:"author_index"`
}

// Bytes returns the canonical encoding of the header.
func (h *Header) Bytes() ([]byte, error) {
	enc, err := codec.Encode(*h)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	return enc, nil
}

// Hash returns the BLAKE2b-256 hash of the encoded header, which identifies
// the block.
func (h *Header) Hash() common.Hash {
	enc, err := h.Bytes()
	if err != nil {
		return common.Hash{}
	}
	return common.Blake2Hash(enc)
}

// DecodeHeader parses a canonically encoded header.
func DecodeHeader(data []byte) (*Header, error) {
	var h Header
	if err := codec.Decode(data, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &h, nil
}

// IsGenesis reports whether the header has no parent.
func (h *Header) IsGenesis() bool {
	return common.IsNilHash(h.ParentHash)
}
