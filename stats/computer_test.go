package stats

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/compress"
	"github.com/witnesslabs/blockstats/statedb"
	"github.com/witnesslabs/blockstats/storage"
	"github.com/witnesslabs/blockstats/trie"
	"github.com/witnesslabs/blockstats/types"
)

var (
	alice = common.BytesToAddress([]byte("alice"))
	bob   = common.BytesToAddress([]byte("bob"))
)

func newTestSetup(t *testing.T) (*statedb.Chain, *Computer) {
	t.Helper()
	chain := statedb.NewChain(storage.NewChainStore(storage.NewMemoryStore()))
	_, err := chain.InitGenesis(map[common.Address]*uint256.Int{
		alice: uint256.NewInt(10_000),
		bob:   uint256.NewInt(500),
	})
	require.NoError(t, err)
	computer := NewComputer(chain.Store(), chain.Executor(), compress.NewZstdCompressor(1<<30))
	return chain, computer
}

func addBlock(t *testing.T, chain *statedb.Chain, ops []statedb.StateOp) *types.Block {
	t.Helper()
	b, err := chain.AddBlock(context.Background(), ops)
	require.NoError(t, err)
	return b
}

func hashPtr(h common.Hash) *common.Hash {
	return &h
}

func TestComputeStats(t *testing.T) {
	chain, computer := newTestSetup(t)
	b := addBlock(t, chain, []statedb.StateOp{
		statedb.NewSetOp(common.Blake2Hash([]byte("k1")), []byte("v1")),
		statedb.NewTransferOp(alice, bob, uint256.NewInt(25)),
		statedb.NewDeleteOp(common.Blake2Hash([]byte("never set"))),
	})

	bs, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.NoError(t, err)
	require.NotNil(t, bs)

	require.Equal(t, uint64(3), bs.NumExtrinsics)
	require.NotZero(t, bs.WitnessLen)
	require.NotZero(t, bs.WitnessCompactLen)
	require.NotZero(t, bs.WitnessCompressedLen)
	require.LessOrEqual(t, bs.WitnessCompactLen, bs.WitnessLen)

	enc, err := b.Bytes()
	require.NoError(t, err)
	require.Equal(t, uint64(len(enc)), bs.BlockLen)
}

func TestComputeStatsDeterministic(t *testing.T) {
	chain, computer := newTestSetup(t)
	b := addBlock(t, chain, []statedb.StateOp{
		statedb.NewTransferOp(alice, bob, uint256.NewInt(1)),
	})

	a, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.NoError(t, err)
	c, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.NoError(t, err)
	require.Equal(t, a, c)
}

func TestComputeStatsNilUsesBest(t *testing.T) {
	chain, computer := newTestSetup(t)
	b := addBlock(t, chain, []statedb.StateOp{
		statedb.NewTransferOp(alice, bob, uint256.NewInt(5)),
	})

	fromBest, err := computer.ComputeStats(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, fromBest)

	fromHash, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.NoError(t, err)
	require.Equal(t, fromHash, fromBest)
}

func TestComputeStatsUnknownBlock(t *testing.T) {
	_, computer := newTestSetup(t)
	bs, err := computer.ComputeStats(context.Background(), hashPtr(common.Blake2Hash([]byte("nope"))))
	require.NoError(t, err)
	require.Nil(t, bs)
}

func TestComputeStatsGenesis(t *testing.T) {
	chain, computer := newTestSetup(t)
	genesisHash, found, err := chain.Store().GetBestBlockHash()
	require.NoError(t, err)
	require.True(t, found)

	bs, err := computer.ComputeStats(context.Background(), hashPtr(genesisHash))
	require.NoError(t, err)
	require.Nil(t, bs, "genesis has no parent, so no stats")
}

func TestComputeStatsEmptyBlock(t *testing.T) {
	chain, computer := newTestSetup(t)
	b := addBlock(t, chain, nil)

	bs, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.NoError(t, err)
	require.NotNil(t, bs)
	require.Zero(t, bs.NumExtrinsics)
	// the slot register is still read, so the witness is never empty
	require.NotZero(t, bs.WitnessLen)
}

// recordlessExecutor executes but drops the witness, as if proof recording
// was not honored.
type recordlessExecutor struct {
	inner *statedb.Executor
}

func (r *recordlessExecutor) ExecuteWithProof(ctx context.Context, parentHash common.Hash, block *types.Block) (*statedb.ExecutionResult, error) {
	res, err := r.inner.Execute(ctx, parentHash, block)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func TestComputeStatsNoProofRecorded(t *testing.T) {
	chain, _ := newTestSetup(t)
	b := addBlock(t, chain, nil)

	computer := NewComputer(chain.Store(), &recordlessExecutor{inner: chain.Executor()}, compress.NewZstdCompressor(1<<30))
	_, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.ErrorIs(t, err, ErrNoProofRecorded)
}

// foreignWitnessExecutor returns a witness recorded against a trie unrelated
// to the block's pre-state root.
type foreignWitnessExecutor struct{}

func (f *foreignWitnessExecutor) ExecuteWithProof(_ context.Context, _ common.Hash, _ *types.Block) (*statedb.ExecutionResult, error) {
	tr := trie.NewTrie()
	tr.Set(common.Blake2Hash([]byte("foreign key")), []byte("foreign value"))
	rec := trie.NewRecorder()
	tr.SetRecorder(rec)
	tr.Get(common.Blake2Hash([]byte("foreign key")))
	return &statedb.ExecutionResult{
		Witness:  rec.Witness(),
		PostRoot: tr.Root(),
	}, nil
}

func TestComputeStatsForeignWitnessFailsCompaction(t *testing.T) {
	chain, _ := newTestSetup(t)
	b := addBlock(t, chain, []statedb.StateOp{
		statedb.NewSetOp(common.Blake2Hash([]byte("k")), []byte("v")),
	})

	computer := NewComputer(chain.Store(), &foreignWitnessExecutor{}, compress.NewZstdCompressor(1<<30))
	bs, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.Nil(t, bs)
	require.ErrorIs(t, err, trie.ErrWitnessRootMismatch)
}

func TestComputeStatsCancelledContext(t *testing.T) {
	chain, computer := newTestSetup(t)
	b := addBlock(t, chain, []statedb.StateOp{
		statedb.NewSetOp(common.Blake2Hash([]byte("k")), []byte("v")),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := computer.ComputeStats(ctx, hashPtr(b.Hash()))
	require.ErrorIs(t, err, context.Canceled)
}

func TestCompressedTracksCompact(t *testing.T) {
	chain, computer := newTestSetup(t)

	// many ops touching distinct keys give a witness with real redundancy
	var ops []statedb.StateOp
	for i := 0; i < 64; i++ {
		ops = append(ops, statedb.NewSetOp(
			common.Blake2Hash([]byte{byte(i), 0x55}), []byte("payload")))
	}
	b := addBlock(t, chain, ops)

	bs, err := computer.ComputeStats(context.Background(), hashPtr(b.Hash()))
	require.NoError(t, err)
	require.Less(t, bs.WitnessCompressedLen, bs.WitnessCompactLen,
		"zstd should shrink a multi-node witness")
}
