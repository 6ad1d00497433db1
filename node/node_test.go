package node

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/compress"
	"github.com/witnesslabs/blockstats/statedb"
	"github.com/witnesslabs/blockstats/stats"
	"github.com/witnesslabs/blockstats/storage"
	"github.com/witnesslabs/blockstats/types"
)

func hashPtr(h common.Hash) *common.Hash {
	return &h
}

func startTestNode(t *testing.T) (*statedb.Chain, *Client, *types.Block) {
	t.Helper()
	chain := statedb.NewChain(storage.NewChainStore(storage.NewMemoryStore()))
	alice := common.BytesToAddress([]byte("alice"))
	bob := common.BytesToAddress([]byte("bob"))
	genesis, err := chain.InitGenesis(map[common.Address]*uint256.Int{
		alice: uint256.NewInt(5000),
	})
	require.NoError(t, err)
	_, err = chain.AddBlock(context.Background(), []statedb.StateOp{
		statedb.NewTransferOp(alice, bob, uint256.NewInt(10)),
	})
	require.NoError(t, err)

	computer := stats.NewComputer(chain.Store(), chain.Executor(), compress.NewZstdCompressor(1<<30))
	srv, err := NewServer("127.0.0.1:0", NewChainService(chain, computer))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	client, err := Dial(srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return chain, client, genesis
}

func TestRPCBlockRoundTrip(t *testing.T) {
	chain, client, genesis := startTestNode(t)

	best, found, err := client.BestBlock()
	require.NoError(t, err)
	require.True(t, found)

	block, found, err := client.GetBlock(hashPtr(best))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, genesis.Hash(), block.Header.ParentHash)

	// nil hash resolves to the best block
	bestBlock, found, err := client.GetBlock(nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, block.Hash(), bestBlock.Hash())

	header, found, err := client.GetHeader(hashPtr(best))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, block.Header, *header)

	parent, found, err := client.Parent(hashPtr(best))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, genesis.Header, *parent)

	// the store agrees with what went over the wire
	stored, found, err := chain.Store().GetBlock(best)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, stored.Hash(), block.Hash())
}

func TestRPCBlockStats(t *testing.T) {
	_, client, genesis := startTestNode(t)

	bs, found, err := client.BlockStats(nil)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(1), bs.NumExtrinsics)
	require.NotZero(t, bs.WitnessLen)
	require.LessOrEqual(t, bs.WitnessCompactLen, bs.WitnessLen)

	// genesis has no parent
	_, found, err = client.BlockStats(hashPtr(genesis.Hash()))
	require.NoError(t, err)
	require.False(t, found)
}

func TestRPCUnknownBlock(t *testing.T) {
	_, client, _ := startTestNode(t)

	_, found, err := client.GetBlock(hashPtr(common.Blake2Hash([]byte("unknown"))))
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = client.Parent(hashPtr(common.Blake2Hash([]byte("unknown"))))
	require.NoError(t, err)
	require.False(t, found)
}
