package storage

import (
	"fmt"

	"github.com/witnesslabs/blockstats/codec"
	"github.com/witnesslabs/blockstats/common"
	"github.com/witnesslabs/blockstats/log"
	"github.com/witnesslabs/blockstats/types"
)

// Index key prefixes.
const (
	prefixHeader = "header_"
	prefixBlock  = "blk_"
	prefixChild  = "child_"
	prefixState  = "state_"
	keyBestBlock = "blk_best"
)

// ChainStore indexes blocks, headers, the child relation and per-block state
// snapshots on a KVStore.
type ChainStore struct {
	db KVStore
}

// NewChainStore wraps db with the chain indexing scheme.
func NewChainStore(db KVStore) *ChainStore {
	return &ChainStore{db: db}
}

// Close closes the underlying store.
func (cs *ChainStore) Close() error {
	return cs.db.Close()
}

func headerKey(h common.Hash) []byte {
	return append([]byte(prefixHeader), h.Bytes()...)
}

func blockKey(h common.Hash) []byte {
	return append([]byte(prefixBlock), h.Bytes()...)
}

func childKey(parent, child common.Hash) []byte {
	k := append([]byte(prefixChild), parent.Bytes()...)
	return append(k, child.Bytes()...)
}

func stateKey(h common.Hash) []byte {
	return append([]byte(prefixState), h.Bytes()...)
}

// StoreBlock writes the block, its header, the parent->child link, and
// advances the best pointer when the block's slot is the highest seen.
func (cs *ChainStore) StoreBlock(b *types.Block) error {
	blockHash := b.Hash()
	if common.IsNilHash(blockHash) {
		return fmt.Errorf("store block: header does not encode")
	}

	headerEnc, err := b.Header.Bytes()
	if err != nil {
		return err
	}
	blockEnc, err := b.Bytes()
	if err != nil {
		return err
	}

	if err := cs.db.Put(headerKey(blockHash), headerEnc); err != nil {
		return fmt.Errorf("store header %s: %w", common.Str(blockHash), err)
	}
	if err := cs.db.Put(blockKey(blockHash), blockEnc); err != nil {
		return fmt.Errorf("store block %s: %w", common.Str(blockHash), err)
	}
	if !b.Header.IsGenesis() {
		if err := cs.db.Put(childKey(b.Header.ParentHash, blockHash), blockHash.Bytes()); err != nil {
			return fmt.Errorf("store child link %s: %w", common.Str(blockHash), err)
		}
	}

	if err := cs.maybeAdvanceBest(b, blockHash); err != nil {
		return err
	}

	log.Debug(log.ModuleStorage, "stored block",
		"hash", common.Str(blockHash), "slot", b.Header.Slot, "extrinsics", b.Extrinsic.Count())
	return nil
}

func (cs *ChainStore) maybeAdvanceBest(b *types.Block, blockHash common.Hash) error {
	bestHash, found, err := cs.GetBestBlockHash()
	if err != nil {
		return err
	}
	if found {
		best, ok, err := cs.GetHeader(bestHash)
		if err != nil {
			return err
		}
		if ok && best.Slot >= b.Header.Slot {
			return nil
		}
	}
	return cs.db.Put([]byte(keyBestBlock), blockHash.Bytes())
}

// GetBlock returns the block with the given hash, or found=false when it is
// not stored.
func (cs *ChainStore) GetBlock(hash common.Hash) (*types.Block, bool, error) {
	enc, found, err := cs.db.Get(blockKey(hash))
	if err != nil || !found {
		return nil, false, err
	}
	b, err := types.DecodeBlock(enc)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt block %s: %w", common.Str(hash), err)
	}
	return b, true, nil
}

// GetHeader returns the header with the given hash, or found=false when it is
// not stored.
func (cs *ChainStore) GetHeader(hash common.Hash) (*types.Header, bool, error) {
	enc, found, err := cs.db.Get(headerKey(hash))
	if err != nil || !found {
		return nil, false, err
	}
	h, err := types.DecodeHeader(enc)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt header %s: %w", common.Str(hash), err)
	}
	return h, true, nil
}

// GetBestBlockHash returns the hash the best pointer currently names.
func (cs *ChainStore) GetBestBlockHash() (common.Hash, bool, error) {
	raw, found, err := cs.db.Get([]byte(keyBestBlock))
	if err != nil || !found {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(raw), true, nil
}

// ResolveBest returns the best block hash, failing when the chain is empty.
func (cs *ChainStore) ResolveBest() (common.Hash, error) {
	hash, found, err := cs.GetBestBlockHash()
	if err != nil {
		return common.Hash{}, err
	}
	if !found {
		return common.Hash{}, fmt.Errorf("resolve best: chain has no blocks")
	}
	return hash, nil
}

// GetChildren returns the hashes of the known children of parent, in
// ascending hash order.
func (cs *ChainStore) GetChildren(parent common.Hash) ([]common.Hash, error) {
	prefix := append([]byte(prefixChild), parent.Bytes()...)
	var children []common.Hash
	err := cs.db.Iterate(prefix, func(_, value []byte) bool {
		children = append(children, common.BytesToHash(value))
		return true
	})
	return children, err
}

// StateEntry is one key/value pair of a state snapshot.
type StateEntry struct {
	Key   common.Hash
	Value []byte
}

type stateSnapshot struct {
	Entries []StateEntry
}

// StoreStateSnapshot persists the full state as of blockHash.
func (cs *ChainStore) StoreStateSnapshot(blockHash common.Hash, entries []StateEntry) error {
	enc, err := codec.Encode(stateSnapshot{Entries: entries})
	if err != nil {
		return fmt.Errorf("encode state snapshot %s: %w", common.Str(blockHash), err)
	}
	return cs.db.Put(stateKey(blockHash), enc)
}

// GetStateSnapshot returns the state as of blockHash, or found=false when no
// snapshot is stored.
func (cs *ChainStore) GetStateSnapshot(blockHash common.Hash) ([]StateEntry, bool, error) {
	enc, found, err := cs.db.Get(stateKey(blockHash))
	if err != nil || !found {
		return nil, false, err
	}
	var snap stateSnapshot
	if err := codec.Decode(enc, &snap); err != nil {
		return nil, false, fmt.Errorf("corrupt state snapshot %s: %w", common.Str(blockHash), err)
	}
	return snap.Entries, true, nil
}
