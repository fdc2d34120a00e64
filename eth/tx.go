package eth

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StoredBlockBodyIndices locates a block's transactions inside the global,
// chain-order transaction numbering. FirstTxNum is the number of the block's
// first transaction; the block owns [FirstTxNum, FirstTxNum+TxCount).
type StoredBlockBodyIndices struct {
	FirstTxNum uint64
	TxCount    uint64
}

// NextTxNum returns the first transaction number after this block.
func (i StoredBlockBodyIndices) NextTxNum() uint64 {
	return i.FirstTxNum + i.TxCount
}

// LastTxNum returns the number of the last transaction in this block.
// For an empty block this equals FirstTxNum.
func (i StoredBlockBodyIndices) LastTxNum() uint64 {
	if i.TxCount == 0 {
		return i.FirstTxNum
	}
	return i.FirstTxNum + i.TxCount - 1
}

// Contains reports whether the given global transaction number falls in this
// block.
func (i StoredBlockBodyIndices) Contains(txNum uint64) bool {
	return txNum >= i.FirstTxNum && txNum < i.NextTxNum()
}

// TransactionMeta is the inclusion context of a mined transaction.
type TransactionMeta struct {
	TxHash      common.Hash
	Index       uint64
	BlockHash   common.Hash
	BlockNumber uint64
	BaseFee     *big.Int
	Timestamp   uint64
}

// StageCheckpoint is the progress marker of a named sync stage.
type StageCheckpoint struct {
	BlockNumber uint64
}

// PruneCheckpoint is the highest pruned position of a prune segment.
type PruneCheckpoint struct {
	BlockNumber uint64
	TxNumber    uint64
}
