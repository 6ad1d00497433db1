package statedb

import "errors"

var (
	// ErrStateUnavailable means no state snapshot is stored for the parent.
	ErrStateUnavailable = errors.New("statedb: parent state snapshot unavailable")

	// ErrParentRootMismatch means the parent snapshot's root does not match
	// the root the block header commits to.
	ErrParentRootMismatch = errors.New("statedb: parent state root mismatch")

	// ErrExtrinsicHashMismatch means the block body does not match the
	// header's extrinsic commitment.
	ErrExtrinsicHashMismatch = errors.New("statedb: extrinsic hash mismatch")

	// ErrSlotNotIncreasing means the block's slot is not past the slot
	// recorded in the parent state.
	ErrSlotNotIncreasing = errors.New("statedb: slot not increasing")

	// ErrInsufficientBalance means a transfer spends more than the sender holds.
	ErrInsufficientBalance = errors.New("statedb: insufficient balance")

	// ErrBalanceOverflow means a transfer would overflow the recipient balance.
	ErrBalanceOverflow = errors.New("statedb: balance overflow")
)
