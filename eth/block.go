package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Account is the basic account record tracked by the state layer.
type Account struct {
	Nonce    uint64
	Balance  *big.Int
	CodeHash common.Hash
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.Balance != nil {
		cpy.Balance = new(big.Int).Set(a.Balance)
	}
	return &cpy
}

// StorageChange records the pre-state value of one storage slot.
type StorageChange struct {
	Slot   common.Hash
	Before common.Hash
}

// AccountChange records the pre-state of an account changed by a block.
// A nil Before means the account did not exist prior to the block.
type AccountChange struct {
	Address common.Address
	Before  *Account
	Storage []StorageChange
}

// ExecutionOutput is the state delta produced by executing one block:
// the post-state of every touched account, written storage slots, deployed
// code, and the revert records needed to reconstruct the pre-state.
type ExecutionOutput struct {
	// Accounts maps every touched address to its post-state.
	// A nil value marks the account as destroyed by this block.
	Accounts map[common.Address]*Account
	// Storage holds post-state values of written slots, per account.
	Storage map[common.Address]map[common.Hash]common.Hash
	// Code holds code deployed by this block, keyed by code hash.
	Code map[common.Hash][]byte
	// Reverts is the per-block pre-state diff, one entry per touched account.
	Reverts []AccountChange
}

// ExecutedBlock is a sealed block bundled with everything execution derived
// from it: recovered senders, receipts, consensus-layer requests, and the
// state delta. Instances are immutable once constructed and shared by
// reference between the overlay and in-flight readers.
type ExecutedBlock struct {
	Block    *types.Block
	Senders  []common.Address
	Receipts types.Receipts
	Requests [][]byte
	Output   *ExecutionOutput
}

func (eb *ExecutedBlock) Number() uint64 {
	return eb.Block.NumberU64()
}

func (eb *ExecutedBlock) Hash() common.Hash {
	return eb.Block.Hash()
}

func (eb *ExecutedBlock) ParentHash() common.Hash {
	return eb.Block.ParentHash()
}

func (eb *ExecutedBlock) ID() BlockID {
	return BlockID{Hash: eb.Hash(), Number: eb.Number()}
}

func (eb *ExecutedBlock) SealedHeader() SealedHeader {
	return SealedHeader{Hash: eb.Block.Hash(), Header: eb.Block.Header()}
}

// BlockWithSenders pairs a block with the recovered sender of each
// transaction, index-aligned with the block body.
type BlockWithSenders struct {
	Block   *types.Block
	Senders []common.Address
}
