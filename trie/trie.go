// Package trie implements the binary Merkle-Patricia trie backing state
// storage, the node recorder used to build execution witnesses, and witness
// compaction against a reference root.
//
// Keys are 32-byte hashes navigated bitwise, most significant bit first.
// Nodes are immutable, so copies share structure and snapshots are cheap.
package trie

import (
	"fmt"

	"github.com/witnesslabs/blockstats/common"
)

// Every node encodes to exactly NodeSize bytes.
const NodeSize = 65

// Node tags, stored in the first encoded byte. Embedded leaves carry the
// value length in the low six bits.
const (
	tagBranch     = 0x00
	tagLeafPrefix = 0x40 // 0x40 | valueLen, valueLen <= 32
	tagLeafHashed = 0x80
)

// maxEmbeddedValue is the largest value stored inline in a leaf. Longer
// values appear as their hash.
const maxEmbeddedValue = 32

type node interface {
	hash() common.Hash
	encoding() []byte
}

type leafNode struct {
	key   common.Hash
	value []byte
	enc   []byte
	h     common.Hash
}

type branchNode struct {
	left  node
	right node
	enc   []byte
	h     common.Hash
}

func newLeaf(key common.Hash, value []byte) *leafNode {
	l := &leafNode{key: key, value: value}
	enc := make([]byte, NodeSize)
	kb := key.Bytes()
	copy(enc[1:32], kb[:31])
	if len(value) <= maxEmbeddedValue {
		enc[0] = tagLeafPrefix | byte(len(value))
		copy(enc[32:], value)
	} else {
		enc[0] = tagLeafHashed
		copy(enc[32:], common.ComputeHash(value)[:])
	}
	l.enc = enc
	l.h = common.Blake2Hash(enc)
	return l
}

func newBranch(left, right node) *branchNode {
	b := &branchNode{left: left, right: right}
	enc := make([]byte, NodeSize)
	enc[0] = tagBranch
	if left != nil {
		copy(enc[1:33], left.hash().Bytes())
	}
	if right != nil {
		copy(enc[33:65], right.hash().Bytes())
	}
	b.enc = enc
	b.h = common.Blake2Hash(enc)
	return b
}

func (l *leafNode) hash() common.Hash { return l.h }
func (l *leafNode) encoding() []byte  { return l.enc }

func (b *branchNode) hash() common.Hash { return b.h }
func (b *branchNode) encoding() []byte  { return b.enc }

// bitAt returns bit i of key, counting from the most significant bit of the
// first byte.
func bitAt(key common.Hash, i int) byte {
	return (key[i/8] >> (7 - uint(i)%8)) & 1
}

// Trie is a binary Merkle-Patricia trie. The zero hash is the root of the
// empty trie.
type Trie struct {
	root     node
	recorder *Recorder
}

// NewTrie returns an empty trie.
func NewTrie() *Trie {
	return &Trie{}
}

// Copy returns a snapshot sharing all nodes with t. The recorder is not
// carried over.
func (t *Trie) Copy() *Trie {
	return &Trie{root: t.root}
}

// SetRecorder attaches r; subsequent lookups record every node they visit.
// Pass nil to stop recording.
func (t *Trie) SetRecorder(r *Recorder) {
	t.recorder = r
}

// Root returns the trie root hash.
func (t *Trie) Root() common.Hash {
	if t.root == nil {
		return common.Hash{}
	}
	return t.root.hash()
}

func (t *Trie) record(n node) {
	if t.recorder != nil {
		t.recorder.record(n.hash(), n.encoding())
	}
}

// Get returns the value stored under key. Visited nodes are recorded when a
// recorder is attached.
func (t *Trie) Get(key common.Hash) ([]byte, bool) {
	n := t.root
	depth := 0
	for n != nil {
		t.record(n)
		switch v := n.(type) {
		case *leafNode:
			if v.key == key {
				return v.value, true
			}
			return nil, false
		case *branchNode:
			if bitAt(key, depth) == 0 {
				n = v.left
			} else {
				n = v.right
			}
			depth++
		}
	}
	return nil, false
}

// Set inserts or replaces the value under key.
func (t *Trie) Set(key common.Hash, value []byte) {
	t.root = insert(t.root, 0, newLeaf(key, value))
}

// Delete removes key. It reports whether the key was present.
func (t *Trie) Delete(key common.Hash) bool {
	root, removed := remove(t.root, 0, key)
	if removed {
		t.root = root
	}
	return removed
}

func insert(n node, depth int, l *leafNode) node {
	if n == nil {
		return l
	}
	switch v := n.(type) {
	case *leafNode:
		if v.key == l.key {
			return l
		}
		return splitLeaves(v, l, depth)
	case *branchNode:
		if bitAt(l.key, depth) == 0 {
			return newBranch(insert(v.left, depth+1, l), v.right)
		}
		return newBranch(v.left, insert(v.right, depth+1, l))
	}
	panic(fmt.Sprintf("trie: unknown node type %T", n))
}

// splitLeaves pushes two leaves with distinct keys down to the first bit
// where their keys diverge.
func splitLeaves(a, b *leafNode, depth int) node {
	abit := bitAt(a.key, depth)
	bbit := bitAt(b.key, depth)
	if abit != bbit {
		if abit == 0 {
			return newBranch(a, b)
		}
		return newBranch(b, a)
	}
	child := splitLeaves(a, b, depth+1)
	if abit == 0 {
		return newBranch(child, nil)
	}
	return newBranch(nil, child)
}

func remove(n node, depth int, key common.Hash) (node, bool) {
	switch v := n.(type) {
	case nil:
		return nil, false
	case *leafNode:
		if v.key == key {
			return nil, true
		}
		return n, false
	case *branchNode:
		if bitAt(key, depth) == 0 {
			left, ok := remove(v.left, depth+1, key)
			if !ok {
				return n, false
			}
			return collapse(left, v.right), true
		}
		right, ok := remove(v.right, depth+1, key)
		if !ok {
			return n, false
		}
		return collapse(v.left, right), true
	}
	panic(fmt.Sprintf("trie: unknown node type %T", n))
}

// collapse pulls a lone leaf up through a branch that lost its other child,
// keeping the trie in canonical form.
func collapse(left, right node) node {
	if left == nil && right == nil {
		return nil
	}
	if left == nil {
		if lf, ok := right.(*leafNode); ok {
			return lf
		}
	}
	if right == nil {
		if lf, ok := left.(*leafNode); ok {
			return lf
		}
	}
	return newBranch(left, right)
}
