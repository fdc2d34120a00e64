// Package memory implements the in-memory canonical overlay: the chain
// segment from the durable boundary to the tip, the pending block, and the
// fork-choice pointers. The overlay is the only mutable shared resource of
// the read path; every mutation is atomic, and readers holding a BlockState
// keep it alive across chain-head updates.
package memory

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/evmstack/chaindata/eth"
)

// BlockState is one executed block tracked by the overlay. It references its
// parent by hash, not by pointer; chain walks resolve the parent through the
// overlay index.
type BlockState struct {
	block *eth.ExecutedBlock
}

func newBlockState(block *eth.ExecutedBlock) *BlockState {
	return &BlockState{block: block}
}

// Block returns the executed block this state wraps.
func (s *BlockState) Block() *eth.ExecutedBlock {
	return s.block
}

func (s *BlockState) Hash() common.Hash {
	return s.block.Hash()
}

func (s *BlockState) Number() uint64 {
	return s.block.Number()
}

func (s *BlockState) ParentHash() common.Hash {
	return s.block.ParentHash()
}

func (s *BlockState) ID() eth.BlockID {
	return s.block.ID()
}

// Receipts returns the receipts derived when the block was executed.
func (s *BlockState) Receipts() types.Receipts {
	return s.block.Receipts
}

// SealedHeader returns the block's header together with its hash.
func (s *BlockState) SealedHeader() eth.SealedHeader {
	return s.block.SealedHeader()
}
