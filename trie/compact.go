package trie

import (
	"errors"
	"fmt"

	"github.com/witnesslabs/blockstats/common"
)

// ErrWitnessRootMismatch is returned when the reference root cannot be found
// among the witness nodes, so the witness does not describe that state.
var ErrWitnessRootMismatch = errors.New("trie: witness does not contain the reference root")

// CompactWitness drops every witness node unreachable from preRoot and orders
// the rest by a deterministic left-to-right walk from the root. The result is
// a subset of the input, so its encoding is never larger.
//
// Children absent from the witness are skipped, matching a witness that only
// covers the paths execution touched.
func CompactWitness(w *ExecutionWitness, preRoot common.Hash) (*ExecutionWitness, error) {
	if common.IsNilHash(preRoot) {
		// empty pre-state, nothing to keep
		return &ExecutionWitness{Nodes: [][]byte{}}, nil
	}

	idx, err := w.nodeIndex()
	if err != nil {
		return nil, err
	}
	if _, ok := idx[preRoot]; !ok {
		return nil, fmt.Errorf("%w: root %s among %d nodes", ErrWitnessRootMismatch, common.Str(preRoot), len(w.Nodes))
	}

	compact := &ExecutionWitness{}
	seen := make(map[common.Hash]bool, len(idx))
	var walk func(h common.Hash)
	walk = func(h common.Hash) {
		if seen[h] {
			return
		}
		enc, ok := idx[h]
		if !ok {
			return
		}
		seen[h] = true
		compact.Nodes = append(compact.Nodes, enc)
		if enc[0] == tagBranch {
			left := common.BytesToHash(enc[1:33])
			right := common.BytesToHash(enc[33:65])
			if !common.IsNilHash(left) {
				walk(left)
			}
			if !common.IsNilHash(right) {
				walk(right)
			}
		}
	}
	walk(preRoot)
	return compact, nil
}

// VerifyCompactWitness checks that compact is exactly the reachable closure
// of preRoot: the root resolves and no node is stray.
func VerifyCompactWitness(compact *ExecutionWitness, preRoot common.Hash) error {
	if common.IsNilHash(preRoot) {
		if len(compact.Nodes) != 0 {
			return fmt.Errorf("trie: %d nodes in witness for empty state", len(compact.Nodes))
		}
		return nil
	}
	rebuilt, err := CompactWitness(compact, preRoot)
	if err != nil {
		return err
	}
	if len(rebuilt.Nodes) != len(compact.Nodes) {
		return fmt.Errorf("trie: %d of %d witness nodes unreachable from root %s",
			len(compact.Nodes)-len(rebuilt.Nodes), len(compact.Nodes), common.Str(preRoot))
	}
	return nil
}
