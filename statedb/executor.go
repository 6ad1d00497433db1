package statedb

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/log"
	"github.com/witnesslabs/blockstats/storage"
	"github.com/witnesslabs/blockstats/trie"
	"github.com/witnesslabs/blockstats/types"
)

// ExecutionResult carries the outcome of replaying a block. Witness is nil
// unless proof recording was requested.
type ExecutionResult struct {
	Witness   *trie.ExecutionWitness
	PostRoot  common.Hash
	PostState []storage.StateEntry
}

// Executor replays blocks against stored parent state snapshots.
type Executor struct {
	chain *storage.ChainStore
}

// NewExecutor returns an executor reading snapshots from chain.
func NewExecutor(chain *storage.ChainStore) *Executor {
	return &Executor{chain: chain}
}

// ExecuteWithProof replays block against the state snapshot of parentHash and
// records every trie node the execution touches.
func (e *Executor) ExecuteWithProof(ctx context.Context, parentHash common.Hash, block *types.Block) (*ExecutionResult, error) {
	return e.execute(ctx, parentHash, block, true)
}

// Execute replays block without proof recording.
func (e *Executor) Execute(ctx context.Context, parentHash common.Hash, block *types.Block) (*ExecutionResult, error) {
	return e.execute(ctx, parentHash, block, false)
}

func (e *Executor) execute(ctx context.Context, parentHash common.Hash, block *types.Block, recordProof bool) (*ExecutionResult, error) {
	eh, err := block.Extrinsic.Hash()
	if err != nil {
		return nil, err
	}
	if eh != block.Header.ExtrinsicHash {
		return nil, fmt.Errorf("%w: body %s, header %s",
			ErrExtrinsicHashMismatch, common.Str(eh), common.Str(block.Header.ExtrinsicHash))
	}

	entries, found, err := e.chain.GetStateSnapshot(parentHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: parent %s", ErrStateUnavailable, common.Str(parentHash))
	}

	pre, state := buildState(entries)
	if pre.Root() != block.Header.ParentStateRoot {
		return nil, fmt.Errorf("%w: snapshot %s, header %s",
			ErrParentRootMismatch, common.Str(pre.Root()), common.Str(block.Header.ParentStateRoot))
	}
	if raw, ok := state[sysSlotKey]; ok && len(raw) == 4 {
		if parentSlot := common.BytesToUint32(raw); block.Header.Slot <= parentSlot {
			return nil, fmt.Errorf("%w: block slot %d, parent slot %d",
				ErrSlotNotIncreasing, block.Header.Slot, parentSlot)
		}
	}

	var rec *trie.Recorder
	if recordProof {
		rec = trie.NewRecorder()
		pre.SetRecorder(rec)
	}
	post := pre.Copy()

	// every block advances the slot register
	pre.Get(sysSlotKey)
	slotVal := common.Uint32ToBytes(block.Header.Slot)
	post.Set(sysSlotKey, slotVal)
	state[sysSlotKey] = slotVal

	for i, xt := range block.Extrinsic.Extrinsics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ops, err := DecodeOps(xt)
		if err != nil {
			return nil, fmt.Errorf("extrinsic %d: %w", i, err)
		}
		for j := range ops {
			if err := applyOp(pre, post, state, &ops[j]); err != nil {
				return nil, fmt.Errorf("extrinsic %d op %d: %w", i, j, err)
			}
		}
	}

	res := &ExecutionResult{
		PostRoot:  post.Root(),
		PostState: sortedEntries(state),
	}
	if rec != nil {
		res.Witness = rec.Witness()
	}

	log.Debug(log.ModuleStateDB, "executed block",
		"block", common.Str(block.Hash()),
		"extrinsics", block.Extrinsic.Count(),
		"post_root", common.Str(res.PostRoot),
		"recorded", rec != nil)
	return res, nil
}

// applyOp reads the pre-state path for the witness and applies the write to
// the post trie and the state overlay. Reads of values written earlier in the
// same block come from the overlay.
func applyOp(pre, post *trie.Trie, state map[common.Hash][]byte, op *StateOp) error {
	switch op.Kind {
	case OpSet:
		pre.Get(op.Key)
		post.Set(op.Key, op.Value)
		state[op.Key] = op.Value
		return nil

	case OpDelete:
		pre.Get(op.Key)
		post.Delete(op.Key)
		delete(state, op.Key)
		return nil

	case OpTransfer:
		fromKey := AccountKey(op.From)
		toKey := AccountKey(op.To)
		pre.Get(fromKey)
		pre.Get(toKey)

		amount := op.AmountInt()
		fromBal := balanceOf(state, fromKey)
		if fromBal.Lt(amount) {
			return fmt.Errorf("%w: %s has %s, sending %s",
				ErrInsufficientBalance, op.From.Hex(), fromBal, amount)
		}
		if op.From == op.To {
			return nil
		}
		toBal := balanceOf(state, toKey)
		newTo, overflow := new(uint256.Int).AddOverflow(toBal, amount)
		if overflow {
			return fmt.Errorf("%w: %s", ErrBalanceOverflow, op.To.Hex())
		}
		newFrom := new(uint256.Int).Sub(fromBal, amount)

		setBalance(post, state, fromKey, newFrom)
		setBalance(post, state, toKey, newTo)
		return nil

	default:
		return fmt.Errorf("unknown state op kind %d", op.Kind)
	}
}

func balanceOf(state map[common.Hash][]byte, key common.Hash) *uint256.Int {
	raw, ok := state[key]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).SetBytes(raw)
}

func setBalance(post *trie.Trie, state map[common.Hash][]byte, key common.Hash, bal *uint256.Int) {
	b := bal.Bytes32()
	post.Set(key, b[:])
	state[key] = b[:]
}

func buildState(entries []storage.StateEntry) (*trie.Trie, map[common.Hash][]byte) {
	tr := trie.NewTrie()
	state := make(map[common.Hash][]byte, len(entries))
	for _, e := range entries {
		v := append([]byte{}, e.Value...)
		tr.Set(e.Key, v)
		state[e.Key] = v
	}
	return tr, state
}

func sortedEntries(state map[common.Hash][]byte) []storage.StateEntry {
	entries := make([]storage.StateEntry, 0, len(state))
	for k, v := range state {
		entries = append(entries, storage.StateEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key.Bytes(), entries[j].Key.Bytes()) < 0
	})
	return entries
}
