package trie

import (
	"fmt"

	"github.com/witnesslabs/blockstats/codec"
	"github.com/witnesslabs/blockstats/common"
)

// Recorder collects the encodings of trie nodes visited during execution.
// Each node is kept once, in first-visit order.
type Recorder struct {
	order []common.Hash
	nodes map[common.Hash][]byte
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{nodes: make(map[common.Hash][]byte)}
}

func (r *Recorder) record(h common.Hash, enc []byte) {
	if _, seen := r.nodes[h]; seen {
		return
	}
	cp := make([]byte, len(enc))
	copy(cp, enc)
	r.nodes[h] = cp
	r.order = append(r.order, h)
}

// Len returns the number of distinct nodes recorded.
func (r *Recorder) Len() int {
	return len(r.order)
}

// Witness returns the recorded node set as an execution witness.
func (r *Recorder) Witness() *ExecutionWitness {
	w := &ExecutionWitness{Nodes: make([][]byte, 0, len(r.order))}
	for _, h := range r.order {
		w.Nodes = append(w.Nodes, r.nodes[h])
	}
	return w
}

// ExecutionWitness is the set of trie node encodings touched while executing
// a block. It is sufficient to replay the block against the pre-state root.
type ExecutionWitness struct {
	Nodes [][]byte `json:"nodes"`
}

// Encode returns the canonical encoding of the witness.
func (w *ExecutionWitness) Encode() ([]byte, error) {
	enc, err := codec.Encode(*w)
	if err != nil {
		return nil, fmt.Errorf("encode witness: %w", err)
	}
	return enc, nil
}

// EncodedSize returns the length of the canonical encoding.
func (w *ExecutionWitness) EncodedSize() (uint64, error) {
	enc, err := w.Encode()
	if err != nil {
		return 0, err
	}
	return uint64(len(enc)), nil
}

// DecodeWitness parses a canonically encoded witness.
func DecodeWitness(data []byte) (*ExecutionWitness, error) {
	var w ExecutionWitness
	if err := codec.Decode(data, &w); err != nil {
		return nil, fmt.Errorf("decode witness: %w", err)
	}
	return &w, nil
}

// nodeIndex maps node hashes to encodings, rejecting malformed entries.
func (w *ExecutionWitness) nodeIndex() (map[common.Hash][]byte, error) {
	idx := make(map[common.Hash][]byte, len(w.Nodes))
	for i, enc := range w.Nodes {
		if len(enc) != NodeSize {
			return nil, fmt.Errorf("witness node %d: %d bytes, want %d", i, len(enc), NodeSize)
		}
		idx[common.Blake2Hash(enc)] = enc
	}
	return idx, nil
}
