// Package stats measures the storage witness of a block by re-executing it
// against its parent state: the full witness size, the size after compaction
// against the pre-state root, the zstd-compressed size, the encoded block
// size, and the extrinsic count.
package stats

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/compress"
	"github.com/witnesslabs/blockstats/log"
	"github.com/witnesslabs/blockstats/statedb"
	"github.com/witnesslabs/blockstats/trie"
	"github.com/witnesslabs/blockstats/types"
)

// ChainDataProvider supplies blocks from the ledger. Absent blocks return
// found=false with a nil error.
type ChainDataProvider interface {
	GetBlock(hash common.Hash) (*types.Block, bool, error)
	ResolveBest() (common.Hash, error)
}

// StateExecutor replays a block against the state of parentHash with proof
// recording requested.
type StateExecutor interface {
	ExecuteWithProof(ctx context.Context, parentHash common.Hash, block *types.Block) (*statedb.ExecutionResult, error)
}

// Computer produces BlockStats records.
type Computer struct {
	chain      ChainDataProvider
	exec       StateExecutor
	compressor compress.Compressor
	tracer     trace.Tracer
}

// NewComputer wires a stats computer over the given chain, executor and
// compressor.
func NewComputer(chain ChainDataProvider, exec StateExecutor, compressor compress.Compressor) *Computer {
	return &Computer{
		chain:      chain,
		exec:       exec,
		compressor: compressor,
		tracer:     otel.Tracer("blockstats/stats"),
	}
}

// ComputeStats re-executes the block with the given hash and reports its
// witness measurements. A nil hash means the current best block. When the
// block or its parent is not in the ledger it returns (nil, nil); that also
// covers the genesis block, whose zero parent hash never resolves.
func (c *Computer) ComputeStats(ctx context.Context, id *common.Hash) (*types.BlockStats, error) {
	var hash common.Hash
	if id != nil {
		hash = *id
	} else {
		best, err := c.chain.ResolveBest()
		if err != nil {
			return nil, err
		}
		hash = best
	}

	ctx, span := c.tracer.Start(ctx, "ComputeBlockStats",
		trace.WithAttributes(attribute.String("block.hash", hash.Hex())))
	defer span.End()

	block, found, err := c.chain.GetBlock(hash)
	if err != nil {
		return nil, traceErr(span, fmt.Errorf("fetch block %s: %w", common.Str(hash), err))
	}
	if !found {
		log.Debug(log.ModuleStats, "block not found", "hash", common.Str(hash))
		return nil, nil
	}

	parent, found, err := c.chain.GetBlock(block.Header.ParentHash)
	if err != nil {
		return nil, traceErr(span, fmt.Errorf("fetch parent of %s: %w", common.Str(hash), err))
	}
	if !found {
		log.Debug(log.ModuleStats, "parent not found",
			"hash", common.Str(hash), "parent", common.Str(block.Header.ParentHash))
		return nil, nil
	}

	res, err := c.exec.ExecuteWithProof(ctx, parent.Hash(), block)
	if err != nil {
		return nil, traceErr(span, fmt.Errorf("execute block %s: %w", common.Str(hash), err))
	}
	if res.Witness == nil || len(res.Witness.Nodes) == 0 {
		return nil, traceErr(span, ErrNoProofRecorded)
	}

	witnessLen, err := res.Witness.EncodedSize()
	if err != nil {
		return nil, traceErr(span, err)
	}

	// the pre-state root the header commits to is the root of the state the
	// block executed against
	compact, err := trie.CompactWitness(res.Witness, block.Header.ParentStateRoot)
	if err != nil {
		return nil, traceErr(span, fmt.Errorf("compact witness of %s: %w", common.Str(hash), err))
	}
	compactEnc, err := compact.Encode()
	if err != nil {
		return nil, traceErr(span, err)
	}

	compressed, err := c.compressor.Compress(compactEnc)
	if err != nil {
		return nil, traceErr(span, fmt.Errorf("compress witness of %s: %w", common.Str(hash), err))
	}

	blockLen, err := block.EncodedSize()
	if err != nil {
		return nil, traceErr(span, err)
	}

	bs := &types.BlockStats{
		WitnessLen:           witnessLen,
		WitnessCompactLen:    uint64(len(compactEnc)),
		WitnessCompressedLen: uint64(len(compressed)),
		BlockLen:             blockLen,
		NumExtrinsics:        uint64(block.NumExtrinsics()),
	}

	span.SetAttributes(
		attribute.Int64("witness.len", int64(bs.WitnessLen)),
		attribute.Int64("witness.compact_len", int64(bs.WitnessCompactLen)),
		attribute.Int64("witness.compressed_len", int64(bs.WitnessCompressedLen)),
		attribute.Int64("block.len", int64(bs.BlockLen)),
		attribute.Int64("block.num_extrinsics", int64(bs.NumExtrinsics)),
	)
	log.Info(log.ModuleStats, "computed block stats",
		"hash", common.Str(hash),
		"witness_len", bs.WitnessLen,
		"compact_len", bs.WitnessCompactLen,
		"compressed_len", bs.WitnessCompressedLen,
		"block_len", bs.BlockLen,
		"extrinsics", bs.NumExtrinsics)
	return bs, nil
}

func traceErr(span trace.Span, err error) error {
	span.RecordError(err)
	return err
}
