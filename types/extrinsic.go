package types

import (
	"fmt"

	"github.com/witnesslabs/blockstats/codec"
	"github.com/witnesslabs/blockstats/common"
)

// Extrinsic is an opaque payload carried by a block. The execution layer
// decodes it into state operations.
type Extrinsic []byte

// ExtrinsicData is the ordered list of extrinsics in a block.
type ExtrinsicData struct {
	Extrinsics []Extrinsic `json:"extrinsics"`
}

// Hash returns the commitment over the encoded extrinsic list, as carried in
// Header.ExtrinsicHash.
func (e *ExtrinsicData) Hash() (common.Hash, error) {
	enc, err := codec.Encode(*e)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode extrinsics: %w", err)
	}
	return common.Blake2Hash(enc), nil
}

// Count returns the number of extrinsics.
func (e *ExtrinsicData) Count() int {
	if e == nil {
		return 0
	}
	return len(e.Extrinsics)
}
