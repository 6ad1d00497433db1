package statedb

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/storage"
	"github.com/witnesslabs/blockstats/types"
)

var (
	alice = common.BytesToAddress([]byte("alice"))
	bob   = common.BytesToAddress([]byte("bob"))
)

func newTestChain(t *testing.T) (*Chain, *types.Block) {
	t.Helper()
	chain := NewChain(storage.NewChainStore(storage.NewMemoryStore()))
	genesis, err := chain.InitGenesis(map[common.Address]*uint256.Int{
		alice: uint256.NewInt(1000),
		bob:   uint256.NewInt(50),
	})
	require.NoError(t, err)
	return chain, genesis
}

func TestOpEncodeDecode(t *testing.T) {
	ops := []StateOp{
		NewSetOp(common.Blake2Hash([]byte("k")), []byte("v")),
		NewDeleteOp(common.Blake2Hash([]byte("k"))),
		NewTransferOp(alice, bob, uint256.NewInt(7)),
	}
	for _, op := range ops {
		enc, err := op.Encode()
		require.NoError(t, err)
		dec, err := DecodeOp(enc)
		require.NoError(t, err)
		require.Equal(t, op, *dec)
	}

	enc, err := EncodeOps(ops)
	require.NoError(t, err)
	decoded, err := DecodeOps(enc)
	require.NoError(t, err)
	require.Equal(t, ops, decoded)

	bad, err := EncodeOps([]StateOp{{Kind: 99}})
	require.NoError(t, err)
	_, err = DecodeOps(bad)
	require.Error(t, err)
}

func TestAddBlockAppliesOps(t *testing.T) {
	chain, genesis := newTestChain(t)
	ctx := context.Background()

	key := common.Blake2Hash([]byte("config"))
	b1, err := chain.AddBlock(ctx, []StateOp{
		NewSetOp(key, []byte("enabled")),
		NewTransferOp(alice, bob, uint256.NewInt(100)),
	})
	require.NoError(t, err)
	require.Equal(t, genesis.Hash(), b1.Header.ParentHash)
	require.Equal(t, uint32(1), b1.Header.Slot)

	entries, found, err := chain.Store().GetStateSnapshot(b1.Hash())
	require.NoError(t, err)
	require.True(t, found)

	state := make(map[common.Hash][]byte)
	for _, e := range entries {
		state[e.Key] = e.Value
	}
	require.Equal(t, []byte("enabled"), state[key])
	require.Equal(t, uint64(900), balanceOf(state, AccountKey(alice)).Uint64())
	require.Equal(t, uint64(150), balanceOf(state, AccountKey(bob)).Uint64())
}

func TestExecuteWithProofRecordsWitness(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()

	b1, err := chain.AddBlock(ctx, []StateOp{
		NewTransferOp(alice, bob, uint256.NewInt(1)),
	})
	require.NoError(t, err)

	res, err := chain.Executor().ExecuteWithProof(ctx, b1.Header.ParentHash, b1)
	require.NoError(t, err)
	require.NotNil(t, res.Witness)
	require.NotEmpty(t, res.Witness.Nodes)

	// witness must resolve against the pre-state root the header commits to
	require.NoError(t, verifyContainsRoot(res, b1.Header.ParentStateRoot))

	// replay is deterministic
	res2, err := chain.Executor().ExecuteWithProof(ctx, b1.Header.ParentHash, b1)
	require.NoError(t, err)
	require.Equal(t, res.PostRoot, res2.PostRoot)
	enc1, err := res.Witness.Encode()
	require.NoError(t, err)
	enc2, err := res2.Witness.Encode()
	require.NoError(t, err)
	require.Equal(t, enc1, enc2)
}

func verifyContainsRoot(res *ExecutionResult, root common.Hash) error {
	for _, enc := range res.Witness.Nodes {
		if common.Blake2Hash(enc) == root {
			return nil
		}
	}
	return errors.New("pre-state root not among witness nodes")
}

func TestExecuteWithoutProof(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()
	b1, err := chain.AddBlock(ctx, nil)
	require.NoError(t, err)

	res, err := chain.Executor().Execute(ctx, b1.Header.ParentHash, b1)
	require.NoError(t, err)
	require.Nil(t, res.Witness)
}

func TestExecuteRejectsBadExtrinsicHash(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()
	b1, err := chain.AddBlock(ctx, nil)
	require.NoError(t, err)

	tampered := *b1
	xt, err := EncodeOps([]StateOp{NewSetOp(common.Blake2Hash([]byte("x")), []byte("y"))})
	require.NoError(t, err)
	tampered.Extrinsic = types.ExtrinsicData{Extrinsics: []types.Extrinsic{xt}}

	_, err = chain.Executor().ExecuteWithProof(ctx, b1.Header.ParentHash, &tampered)
	require.ErrorIs(t, err, ErrExtrinsicHashMismatch)
}

func TestExecuteRejectsWrongParentRoot(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()
	b1, err := chain.AddBlock(ctx, nil)
	require.NoError(t, err)

	tampered := *b1
	tampered.Header.ParentStateRoot = common.Blake2Hash([]byte("some other root"))
	_, err = chain.Executor().ExecuteWithProof(ctx, b1.Header.ParentHash, &tampered)
	require.ErrorIs(t, err, ErrParentRootMismatch)
}

func TestExecuteRejectsStaleSlot(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()
	b1, err := chain.AddBlock(ctx, nil)
	require.NoError(t, err)

	// same slot as the parent's slot register
	tampered := *b1
	tampered.Header.Slot = 0
	_, err = chain.Executor().ExecuteWithProof(ctx, b1.Header.ParentHash, &tampered)
	require.ErrorIs(t, err, ErrSlotNotIncreasing)
}

func TestExecuteMissingParentState(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()
	b1, err := chain.AddBlock(ctx, nil)
	require.NoError(t, err)

	_, err = chain.Executor().ExecuteWithProof(ctx, common.Blake2Hash([]byte("unknown")), b1)
	require.ErrorIs(t, err, ErrStateUnavailable)
}

func TestInsufficientBalanceFailsBlock(t *testing.T) {
	chain, _ := newTestChain(t)
	_, err := chain.AddBlock(context.Background(), []StateOp{
		NewTransferOp(bob, alice, uint256.NewInt(1_000_000)),
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	chain, _ := newTestChain(t)
	b1, err := chain.AddBlock(context.Background(), []StateOp{
		NewSetOp(common.Blake2Hash([]byte("a")), []byte("1")),
		NewSetOp(common.Blake2Hash([]byte("b")), []byte("2")),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = chain.Executor().ExecuteWithProof(ctx, b1.Header.ParentHash, b1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDeleteOpRemovesKey(t *testing.T) {
	chain, _ := newTestChain(t)
	ctx := context.Background()
	key := common.Blake2Hash([]byte("ephemeral"))

	_, err := chain.AddBlock(ctx, []StateOp{NewSetOp(key, []byte("v"))})
	require.NoError(t, err)
	b2, err := chain.AddBlock(ctx, []StateOp{NewDeleteOp(key)})
	require.NoError(t, err)

	entries, found, err := chain.Store().GetStateSnapshot(b2.Hash())
	require.NoError(t, err)
	require.True(t, found)
	for _, e := range entries {
		require.NotEqual(t, key, e.Key, "deleted key still in snapshot")
	}
}
