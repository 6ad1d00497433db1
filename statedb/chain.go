package statedb

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/log"
	"github.com/witnesslabs/blockstats/storage"
	"github.com/witnesslabs/blockstats/trie"
	"github.com/witnesslabs/blockstats/types"
)

// Chain appends blocks to a ChainStore, keeping the per-block state snapshots
// the executor replays against.
type Chain struct {
	store *storage.ChainStore
	exec  *Executor
}

// NewChain returns a chain builder over store.
func NewChain(store *storage.ChainStore) *Chain {
	return &Chain{store: store, exec: NewExecutor(store)}
}

// Store exposes the underlying chain store.
func (c *Chain) Store() *storage.ChainStore {
	return c.store
}

// Executor exposes the block executor bound to this chain.
func (c *Chain) Executor() *Executor {
	return c.exec
}

// InitGenesis writes the genesis block and its state snapshot. Balances fund
// the given accounts in the initial state.
func (c *Chain) InitGenesis(balances map[common.Address]*uint256.Int) (*types.Block, error) {
	tr := trie.NewTrie()
	state := make(map[common.Hash][]byte, len(balances)+1)

	slotVal := common.Uint32ToBytes(0)
	tr.Set(sysSlotKey, slotVal)
	state[sysSlotKey] = slotVal
	for addr, bal := range balances {
		setBalance(tr, state, AccountKey(addr), bal)
	}

	ed := types.ExtrinsicData{}
	eh, err := ed.Hash()
	if err != nil {
		return nil, err
	}
	genesis := &types.Block{
		Header: types.Header{
			ParentHash:      common.Hash{},
			ParentStateRoot: tr.Root(),
			ExtrinsicHash:   eh,
			Slot:            0,
		},
		Extrinsic: ed,
	}

	if err := c.store.StoreBlock(genesis); err != nil {
		return nil, err
	}
	if err := c.store.StoreStateSnapshot(genesis.Hash(), sortedEntries(state)); err != nil {
		return nil, err
	}

	log.Info(log.ModuleStateDB, "genesis written",
		"hash", common.Str(genesis.Hash()), "accounts", len(balances), "state_root", common.Str(tr.Root()))
	return genesis, nil
}

// AddBlock executes the given operations on top of the current best block and
// persists the resulting block and snapshot.
func (c *Chain) AddBlock(ctx context.Context, ops []StateOp) (*types.Block, error) {
	parentHash, found, err := c.store.GetBestBlockHash()
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("add block: chain has no genesis")
	}
	parent, found, err := c.store.GetHeader(parentHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("add block: best header %s missing", common.Str(parentHash))
	}

	entries, found, err := c.store.GetStateSnapshot(parentHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: parent %s", ErrStateUnavailable, common.Str(parentHash))
	}
	preTrie, _ := buildState(entries)

	// one extrinsic per operation
	ed := types.ExtrinsicData{}
	for i := range ops {
		enc, err := EncodeOps(ops[i : i+1])
		if err != nil {
			return nil, fmt.Errorf("encode op %d: %w", i, err)
		}
		ed.Extrinsics = append(ed.Extrinsics, enc)
	}
	eh, err := ed.Hash()
	if err != nil {
		return nil, err
	}

	block := &types.Block{
		Header: types.Header{
			ParentHash:      parentHash,
			ParentStateRoot: preTrie.Root(),
			ExtrinsicHash:   eh,
			Slot:            parent.Slot + 1,
		},
		Extrinsic: ed,
	}

	res, err := c.exec.Execute(ctx, parentHash, block)
	if err != nil {
		return nil, fmt.Errorf("execute block at slot %d: %w", block.Header.Slot, err)
	}

	if err := c.store.StoreBlock(block); err != nil {
		return nil, err
	}
	if err := c.store.StoreStateSnapshot(block.Hash(), res.PostState); err != nil {
		return nil, err
	}

	log.Debug(log.ModuleStateDB, "block appended",
		"hash", common.Str(block.Hash()), "slot", block.Header.Slot, "ops", len(ops))
	return block, nil
}
