package store

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/evmstack/chaindata/eth"
)

// WriteBlock appends an executed block to the store. Blocks must be appended
// in order: the first write anchors the store at any height, every later
// write must extend the current tail by exactly one block and link to its
// hash. The block's state output is folded into the flat latest state and its
// pre-state diff is recorded as the block's changeset.
func (db *DB) WriteBlock(block *eth.ExecutedBlock, td *big.Int) error {
	db.wmu.Lock()
	defer db.wmu.Unlock()

	number := block.Number()
	firstTxNum := uint64(0)

	_, anchored, err := db.get(lastBlockKey)
	if err != nil {
		return err
	}
	if anchored {
		last, err := db.LastBlockNumber()
		if err != nil {
			return err
		}
		if number != last+1 {
			return fmt.Errorf("non-contiguous append: store tail is %d, got block %d", last, number)
		}
		lastHash, err := db.CanonicalHash(last)
		if err != nil {
			return err
		}
		if block.ParentHash() != lastHash {
			return fmt.Errorf("block %s does not link to store tail %s", block.ID(), lastHash.TerminalString())
		}
		lastIndices, err := db.BodyIndices(last)
		if err != nil {
			return err
		}
		if lastIndices == nil {
			return fmt.Errorf("missing body indices for store tail %d", last)
		}
		firstTxNum = lastIndices.NextTxNum()
	}

	txs := block.Block.Transactions()
	if len(block.Senders) != len(txs) {
		return fmt.Errorf("block %s: %d senders for %d transactions", block.ID(), len(block.Senders), len(txs))
	}
	if len(block.Receipts) != len(txs) {
		return fmt.Errorf("block %s: %d receipts for %d transactions", block.ID(), len(block.Receipts), len(txs))
	}

	batch := db.kv.NewBatch()

	headerData, err := rlp.EncodeToBytes(block.Block.Header())
	if err != nil {
		return err
	}
	if err := batch.Put(numberKey(headerPrefix, number), headerData); err != nil {
		return err
	}
	if err := batch.Put(hashKey(headerNumberPrefix, block.Hash()), encodeNumber(number)); err != nil {
		return err
	}
	if err := batch.Put(numberKey(canonicalHashPrefix, number), block.Hash().Bytes()); err != nil {
		return err
	}

	body := block.Block.Body()
	bodyData, err := rlp.EncodeToBytes(body)
	if err != nil {
		return err
	}
	if err := batch.Put(numberKey(bodyPrefix, number), bodyData); err != nil {
		return err
	}

	sendersData, err := rlp.EncodeToBytes(block.Senders)
	if err != nil {
		return err
	}
	if err := batch.Put(numberKey(sendersPrefix, number), sendersData); err != nil {
		return err
	}

	receiptsData, err := rlp.EncodeToBytes(toStorageReceipts(block))
	if err != nil {
		return err
	}
	if err := batch.Put(numberKey(receiptsPrefix, number), receiptsData); err != nil {
		return err
	}

	if td != nil {
		tdData, err := rlp.EncodeToBytes(td)
		if err != nil {
			return err
		}
		if err := batch.Put(numberKey(tdPrefix, number), tdData); err != nil {
			return err
		}
	}

	indices := eth.StoredBlockBodyIndices{FirstTxNum: firstTxNum, TxCount: uint64(len(txs))}
	indicesData, err := rlp.EncodeToBytes(indices)
	if err != nil {
		return err
	}
	if err := batch.Put(numberKey(bodyIndicesPrefix, number), indicesData); err != nil {
		return err
	}

	for i, tx := range txs {
		id := firstTxNum + uint64(i)
		if err := batch.Put(hashKey(txLookupPrefix, tx.Hash()), encodeNumber(id)); err != nil {
			return err
		}
		if err := batch.Put(numberKey(txBlockPrefix, id), encodeNumber(number)); err != nil {
			return err
		}
	}

	if len(block.Requests) > 0 {
		requestsData, err := rlp.EncodeToBytes(block.Requests)
		if err != nil {
			return err
		}
		if err := batch.Put(numberKey(requestsPrefix, number), requestsData); err != nil {
			return err
		}
	}

	if block.Output != nil {
		changesData, err := rlp.EncodeToBytes(toStoredChanges(block.Output.Reverts))
		if err != nil {
			return err
		}
		if err := batch.Put(numberKey(changeSetPrefix, number), changesData); err != nil {
			return err
		}
		if err := db.applyState(batch, block.Output); err != nil {
			return err
		}
	}

	if err := batch.Put(lastBlockKey, encodeNumber(number)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to persist block %s: %w", block.ID(), err)
	}

	db.headerCache.Add(number, block.Block.Header())
	db.bodyCache.Add(number, body)
	if td != nil {
		db.tdCache.Add(number, new(big.Int).Set(td))
	}
	db.m.RecordDBEntryCount("blocks", int64(number+1))
	db.log.Debug("Persisted block", "block", block.ID(), "txs", len(txs), "first_tx", firstTxNum)
	return nil
}

func toStorageReceipts(block *eth.ExecutedBlock) []*types.ReceiptForStorage {
	stored := make([]*types.ReceiptForStorage, len(block.Receipts))
	for i, r := range block.Receipts {
		stored[i] = (*types.ReceiptForStorage)(r)
	}
	return stored
}

// applyState folds a block's post-state into the flat latest state.
func (db *DB) applyState(batch ethdb.Batch, out *eth.ExecutionOutput) error {
	for addr, account := range out.Accounts {
		if account == nil {
			if err := batch.Delete(accountKey(addr)); err != nil {
				return err
			}
			// Clear the destroyed account's storage so stale slots cannot
			// resurface if the address is recreated.
			it := db.kv.NewIterator(append(append([]byte{}, storagePrefix...), addr.Bytes()...), nil)
			for it.Next() {
				if err := batch.Delete(it.Key()); err != nil {
					it.Release()
					return err
				}
			}
			it.Release()
			continue
		}
		data, err := rlp.EncodeToBytes(toStoredAccount(account))
		if err != nil {
			return err
		}
		if err := batch.Put(accountKey(addr), data); err != nil {
			return err
		}
	}
	for addr, slots := range out.Storage {
		for slot, value := range slots {
			if err := batch.Put(storageKey(addr, slot), value.Bytes()); err != nil {
				return err
			}
		}
	}
	for codeHash, code := range out.Code {
		if err := batch.Put(hashKey(codePrefix, codeHash), code); err != nil {
			return err
		}
	}
	return nil
}

// SetStageCheckpoint records the progress of a named sync stage.
func (db *DB) SetStageCheckpoint(id string, cp eth.StageCheckpoint) error {
	data, err := rlp.EncodeToBytes(cp)
	if err != nil {
		return err
	}
	return db.kv.Put(stageKey(id), data)
}

// SetPruneCheckpoint records the highest pruned position of a segment.
func (db *DB) SetPruneCheckpoint(segment string, cp eth.PruneCheckpoint) error {
	data, err := rlp.EncodeToBytes(cp)
	if err != nil {
		return err
	}
	return db.kv.Put(pruneKey(segment), data)
}
