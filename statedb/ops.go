// Package statedb executes blocks against parent state, optionally recording
// the trie nodes touched so the execution witness can be extracted.
package statedb

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/witnesslabs/blockstats/codec"
	"github.com/witnesslabs/blockstats/common"
)

// State operation kinds carried in extrinsics.
const (
	OpSet uint8 = iota
	OpDelete
	OpTransfer
)

// StateOp is the decoded form of one extrinsic. Key and Value apply to Set
// and Delete; From, To and Amount apply to Transfer. Amount is a big-endian
// 256-bit integer.
type StateOp struct {
	Kind   uint8
	Key    common.Hash
	Value  []byte
	From   common.Address
	To     common.Address
	Amount [32]byte
}

// NewSetOp stores value under key.
func NewSetOp(key common.Hash, value []byte) StateOp {
	return StateOp{Kind: OpSet, Key: key, Value: value}
}

// NewDeleteOp removes key.
func NewDeleteOp(key common.Hash) StateOp {
	return StateOp{Kind: OpDelete, Key: key}
}

// NewTransferOp moves amount from one account balance to another.
func NewTransferOp(from, to common.Address, amount *uint256.Int) StateOp {
	return StateOp{Kind: OpTransfer, From: from, To: to, Amount: amount.Bytes32()}
}

// AmountInt returns the transfer amount as a uint256.
func (op *StateOp) AmountInt() *uint256.Int {
	return new(uint256.Int).SetBytes(op.Amount[:])
}

// Encode returns the extrinsic payload for op.
func (op StateOp) Encode() ([]byte, error) {
	return codec.Encode(op)
}

// DecodeOp parses a single encoded state operation.
func DecodeOp(data []byte) (*StateOp, error) {
	var op StateOp
	if err := codec.Decode(data, &op); err != nil {
		return nil, fmt.Errorf("decode state op: %w", err)
	}
	if op.Kind > OpTransfer {
		return nil, fmt.Errorf("unknown state op kind %d", op.Kind)
	}
	return &op, nil
}

// EncodeOps returns the extrinsic payload for a list of operations.
func EncodeOps(ops []StateOp) ([]byte, error) {
	return codec.Encode(ops)
}

// DecodeOps parses an extrinsic payload into its state operations.
func DecodeOps(data []byte) ([]StateOp, error) {
	var ops []StateOp
	if err := codec.Decode(data, &ops); err != nil {
		return nil, fmt.Errorf("decode state ops: %w", err)
	}
	for i := range ops {
		if ops[i].Kind > OpTransfer {
			return nil, fmt.Errorf("op %d: unknown state op kind %d", i, ops[i].Kind)
		}
	}
	return ops, nil
}

// AccountKey returns the state key holding the balance of addr.
func AccountKey(addr common.Address) common.Hash {
	return common.Blake2Hash(append([]byte("acct:"), addr.Bytes()...))
}

// sysSlotKey holds the slot of the last executed block. Every block reads and
// rewrites it, so execution always touches state.
var sysSlotKey = common.Blake2Hash([]byte("sys:slot"))
