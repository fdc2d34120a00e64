package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/evmstack/chaindata/eth"
)

// TransactionIDByHash resolves a transaction hash to its global transaction
// number.
func (db *DB) TransactionIDByHash(hash common.Hash) (uint64, bool, error) {
	data, ok, err := db.get(hashKey(txLookupPrefix, hash))
	if err != nil || !ok {
		return 0, false, err
	}
	return decodeNumber(data), true, nil
}

// TransactionBlock resolves a global transaction number to the number of the
// block containing it.
func (db *DB) TransactionBlock(id uint64) (uint64, bool, error) {
	data, ok, err := db.get(numberKey(txBlockPrefix, id))
	if err != nil || !ok {
		return 0, false, err
	}
	return decodeNumber(data), true, nil
}

// TransactionByID returns the transaction with the given global number, or
// nil if it is not persisted.
func (db *DB) TransactionByID(id uint64) (*types.Transaction, error) {
	blockNum, ok, err := db.TransactionBlock(id)
	if err != nil || !ok {
		return nil, err
	}
	indices, err := db.BodyIndices(blockNum)
	if err != nil || indices == nil {
		return nil, err
	}
	body, err := db.body(blockNum)
	if err != nil || body == nil {
		return nil, err
	}
	local := id - indices.FirstTxNum
	if local >= uint64(len(body.Transactions)) {
		return nil, fmt.Errorf("tx %d maps to block %d but local index %d is out of bounds", id, blockNum, local)
	}
	return body.Transactions[local], nil
}

// TransactionByIDNoHash is TransactionByID without forcing the transaction
// hash. types.Transaction memoizes its hash lazily, so the distinction only
// matters to callers that never ask for it.
func (db *DB) TransactionByIDNoHash(id uint64) (*types.Transaction, error) {
	return db.TransactionByID(id)
}

// TransactionSender returns the recovered sender of the transaction with the
// given global number, or nil.
func (db *DB) TransactionSender(id uint64) (*common.Address, error) {
	blockNum, ok, err := db.TransactionBlock(id)
	if err != nil || !ok {
		return nil, err
	}
	indices, err := db.BodyIndices(blockNum)
	if err != nil || indices == nil {
		return nil, err
	}
	senders, err := db.SendersByBlockNumber(blockNum)
	if err != nil {
		return nil, err
	}
	local := id - indices.FirstTxNum
	if local >= uint64(len(senders)) {
		return nil, nil
	}
	sender := senders[local]
	return &sender, nil
}

// TransactionsByBlockNumber returns the transactions of the canonical block
// at the given height, or nil if the block is not persisted.
func (db *DB) TransactionsByBlockNumber(number uint64) (types.Transactions, error) {
	body, err := db.body(number)
	if err != nil || body == nil {
		return nil, err
	}
	return body.Transactions, nil
}

// TransactionsByBlockRange returns per-block transaction lists for [start,
// end], stopping at the first unpersisted height.
func (db *DB) TransactionsByBlockRange(start, end uint64) ([]types.Transactions, error) {
	var out []types.Transactions
	for number := start; number <= end; number++ {
		body, err := db.body(number)
		if err != nil {
			return nil, err
		}
		if body == nil {
			break
		}
		out = append(out, body.Transactions)
	}
	return out, nil
}

// TransactionsByTxRange returns the transactions with global numbers in
// [start, end], flattened across block boundaries. Numbers past the persisted
// tail are silently omitted.
func (db *DB) TransactionsByTxRange(start, end uint64) (types.Transactions, error) {
	var out types.Transactions
	for id := start; id <= end; {
		blockNum, ok, err := db.TransactionBlock(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		indices, err := db.BodyIndices(blockNum)
		if err != nil || indices == nil {
			return out, err
		}
		body, err := db.body(blockNum)
		if err != nil || body == nil {
			return out, err
		}
		for ; id <= end && indices.Contains(id); id++ {
			out = append(out, body.Transactions[id-indices.FirstTxNum])
		}
	}
	return out, nil
}

// SendersByTxRange returns the recovered senders of the transactions with
// global numbers in [start, end].
func (db *DB) SendersByTxRange(start, end uint64) ([]common.Address, error) {
	var out []common.Address
	for id := start; id <= end; {
		blockNum, ok, err := db.TransactionBlock(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		indices, err := db.BodyIndices(blockNum)
		if err != nil || indices == nil {
			return out, err
		}
		senders, err := db.SendersByBlockNumber(blockNum)
		if err != nil {
			return out, err
		}
		for ; id <= end && indices.Contains(id); id++ {
			local := id - indices.FirstTxNum
			if local < uint64(len(senders)) {
				out = append(out, senders[local])
			}
		}
	}
	return out, nil
}

// ReceiptsByBlockNumber returns the receipts of the canonical block at the
// given height. A persisted empty block yields an empty non-nil slice, an
// unpersisted height yields nil.
func (db *DB) ReceiptsByBlockNumber(number uint64) (types.Receipts, error) {
	data, ok, err := db.get(numberKey(receiptsPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	var stored []*types.ReceiptForStorage
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("corrupt receipts %d: %w", number, err)
	}
	receipts := make(types.Receipts, len(stored))
	for i, r := range stored {
		receipts[i] = (*types.Receipt)(r)
	}
	return receipts, nil
}

// ReceiptByID returns the receipt of the transaction with the given global
// number, or nil.
func (db *DB) ReceiptByID(id uint64) (*types.Receipt, error) {
	blockNum, ok, err := db.TransactionBlock(id)
	if err != nil || !ok {
		return nil, err
	}
	indices, err := db.BodyIndices(blockNum)
	if err != nil || indices == nil {
		return nil, err
	}
	receipts, err := db.ReceiptsByBlockNumber(blockNum)
	if err != nil || receipts == nil {
		return nil, err
	}
	local := id - indices.FirstTxNum
	if local >= uint64(len(receipts)) {
		return nil, fmt.Errorf("tx %d maps to block %d but receipt index %d is out of bounds", id, blockNum, local)
	}
	return receipts[local], nil
}

// ReceiptByHash returns the receipt of the transaction with the given hash,
// or nil.
func (db *DB) ReceiptByHash(hash common.Hash) (*types.Receipt, error) {
	id, ok, err := db.TransactionIDByHash(hash)
	if err != nil || !ok {
		return nil, err
	}
	return db.ReceiptByID(id)
}

// ReceiptsByTxRange returns the receipts of the transactions with global
// numbers in [start, end].
func (db *DB) ReceiptsByTxRange(start, end uint64) (types.Receipts, error) {
	var out types.Receipts
	for id := start; id <= end; {
		blockNum, ok, err := db.TransactionBlock(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		indices, err := db.BodyIndices(blockNum)
		if err != nil || indices == nil {
			return out, err
		}
		receipts, err := db.ReceiptsByBlockNumber(blockNum)
		if err != nil || receipts == nil {
			return out, err
		}
		for ; id <= end && indices.Contains(id); id++ {
			out = append(out, receipts[id-indices.FirstTxNum])
		}
	}
	return out, nil
}

// AccountChangeSet returns the pre-state diff recorded for the block at the
// given height. A block that touched no accounts yields an empty slice.
func (db *DB) AccountChangeSet(number uint64) ([]eth.AccountChange, error) {
	data, ok, err := db.get(numberKey(changeSetPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	var stored []storedAccountChange
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("corrupt changeset %d: %w", number, err)
	}
	return fromStoredChanges(stored), nil
}

// StageCheckpoint returns the progress checkpoint of the given sync stage, or
// nil if the stage never ran.
func (db *DB) StageCheckpoint(id string) (*eth.StageCheckpoint, error) {
	data, ok, err := db.get(stageKey(id))
	if err != nil || !ok {
		return nil, err
	}
	cp := new(eth.StageCheckpoint)
	if err := rlp.DecodeBytes(data, cp); err != nil {
		return nil, fmt.Errorf("corrupt stage checkpoint %q: %w", id, err)
	}
	return cp, nil
}

// PruneCheckpoint returns the highest pruned position of the given segment,
// or nil if the segment was never pruned.
func (db *DB) PruneCheckpoint(segment string) (*eth.PruneCheckpoint, error) {
	data, ok, err := db.get(pruneKey(segment))
	if err != nil || !ok {
		return nil, err
	}
	cp := new(eth.PruneCheckpoint)
	if err := rlp.DecodeBytes(data, cp); err != nil {
		return nil, fmt.Errorf("corrupt prune checkpoint %q: %w", segment, err)
	}
	return cp, nil
}
