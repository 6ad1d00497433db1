package types

// BlockStats reports storage witness and size measurements obtained by
// re-executing a block against its parent state.
type BlockStats struct {
	// WitnessLen is the encoded size of the full execution witness.
	WitnessLen uint64 `json:"witness_len"`
	// WitnessCompactLen is the encoded size of the witness after compaction
	// against the pre-state root.
	WitnessCompactLen uint64 `json:"witness_compact_len"`
	// WitnessCompressedLen is the zstd-compressed size of the compact witness.
	WitnessCompressedLen uint64 `json:"witness_compressed_len"`
	// BlockLen is the encoded size of the block itself.
	BlockLen uint64 `json:"block_len"`
	// NumExtrinsics is the number of extrinsics carried by the block.
	NumExtrinsics uint64 `json:"block_num_extrinsics"`
}
