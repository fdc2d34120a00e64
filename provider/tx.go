package provider

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/memory"
)

// blockStateByTxID locates a global transaction number in the overlay. The
// store's tail indices give the first in-memory number; ids below it are
// durable (inMemory=false), ids at or above it are chased through the overlay
// by accumulating per-block transaction counts. An id beyond the overlay tip
// yields (nil, 0, true): in-memory territory, but no such transaction.
func (p *BlockchainProvider) blockStateByTxID(id uint64, lookup memLookup) (st *memory.BlockState, local uint64, inMemory bool, err error) {
	last, err := p.store.LastBlockNumber()
	if err != nil {
		return nil, 0, false, err
	}
	anchor, err := p.store.BodyIndices(last)
	if err != nil {
		return nil, 0, false, err
	}
	if anchor == nil {
		return nil, 0, false, fmt.Errorf("%w: block %d", eth.ErrBlockBodyIndicesNotFound, last)
	}
	running := anchor.NextTxNum()
	if id < running {
		return nil, 0, false, nil
	}
	for num := last + 1; ; num++ {
		st := lookup(num)
		if st == nil {
			return nil, 0, true, nil
		}
		count := uint64(len(st.Block().Block.Transactions()))
		if id < running+count {
			return st, id - running, true, nil
		}
		running += count
	}
}

// TransactionByID returns the transaction with the given global number, from
// either side of the boundary, or nil.
func (p *BlockchainProvider) TransactionByID(id uint64) (*types.Transaction, error) {
	st, local, inMemory, err := p.blockStateByTxID(id, p.memRangeLookup())
	if err != nil {
		return nil, err
	}
	if !inMemory {
		return p.store.TransactionByID(id)
	}
	if st == nil {
		return nil, nil
	}
	return st.Block().Block.Transactions()[local], nil
}

// TransactionByIDNoHash is TransactionByID for callers that never need the
// transaction hash.
func (p *BlockchainProvider) TransactionByIDNoHash(id uint64) (*types.Transaction, error) {
	st, local, inMemory, err := p.blockStateByTxID(id, p.memRangeLookup())
	if err != nil {
		return nil, err
	}
	if !inMemory {
		return p.store.TransactionByIDNoHash(id)
	}
	if st == nil {
		return nil, nil
	}
	return st.Block().Block.Transactions()[local], nil
}

// TransactionBlock resolves a global transaction number to its block number.
func (p *BlockchainProvider) TransactionBlock(id uint64) (uint64, bool, error) {
	st, _, inMemory, err := p.blockStateByTxID(id, p.memRangeLookup())
	if err != nil {
		return 0, false, err
	}
	if !inMemory {
		return p.store.TransactionBlock(id)
	}
	if st == nil {
		return 0, false, nil
	}
	return st.Number(), true, nil
}

// TransactionSender returns the recovered sender of the transaction with the
// given global number, or nil.
func (p *BlockchainProvider) TransactionSender(id uint64) (*common.Address, error) {
	st, local, inMemory, err := p.blockStateByTxID(id, p.memRangeLookup())
	if err != nil {
		return nil, err
	}
	if !inMemory {
		return p.store.TransactionSender(id)
	}
	if st == nil {
		return nil, nil
	}
	senders := st.Block().Senders
	if local >= uint64(len(senders)) {
		return nil, nil
	}
	sender := senders[local]
	return &sender, nil
}

// TransactionIDByHash resolves a transaction hash to its global number,
// durable hash index first, then a body-order walk through the overlay
// assigning running numbers from the store's tail.
func (p *BlockchainProvider) TransactionIDByHash(hash common.Hash) (uint64, bool, error) {
	id, ok, err := p.store.TransactionIDByHash(hash)
	if err != nil || ok {
		return id, ok, err
	}
	last, err := p.store.LastBlockNumber()
	if err != nil {
		return 0, false, err
	}
	anchor, err := p.store.BodyIndices(last)
	if err != nil {
		return 0, false, err
	}
	if anchor == nil {
		return 0, false, fmt.Errorf("%w: block %d", eth.ErrBlockBodyIndicesNotFound, last)
	}
	running := anchor.NextTxNum()
	lookup := p.memRangeLookup()
	for num := last + 1; ; num++ {
		st := lookup(num)
		if st == nil {
			return 0, false, nil
		}
		for i, tx := range st.Block().Block.Transactions() {
			if tx.Hash() == hash {
				return running + uint64(i), true, nil
			}
		}
		running += uint64(len(st.Block().Block.Transactions()))
	}
}

// TransactionByHash returns the mined transaction with the given hash,
// overlay first, or nil.
func (p *BlockchainProvider) TransactionByHash(hash common.Hash) (*types.Transaction, error) {
	if tx := p.mem.TransactionByHash(hash); tx != nil {
		return tx, nil
	}
	id, ok, err := p.store.TransactionIDByHash(hash)
	if err != nil || !ok {
		return nil, err
	}
	return p.store.TransactionByID(id)
}

// TransactionByHashWithMeta is TransactionByHash plus the inclusion context.
func (p *BlockchainProvider) TransactionByHashWithMeta(hash common.Hash) (*types.Transaction, *eth.TransactionMeta, error) {
	if tx, meta := p.mem.TransactionByHashWithMeta(hash); tx != nil {
		return tx, meta, nil
	}
	id, ok, err := p.store.TransactionIDByHash(hash)
	if err != nil || !ok {
		return nil, nil, err
	}
	blockNum, ok, err := p.store.TransactionBlock(id)
	if err != nil || !ok {
		return nil, nil, err
	}
	tx, err := p.store.TransactionByID(id)
	if err != nil || tx == nil {
		return nil, nil, err
	}
	indices, err := p.store.BodyIndices(blockNum)
	if err != nil {
		return nil, nil, err
	}
	if indices == nil {
		return nil, nil, fmt.Errorf("%w: block %d", eth.ErrBlockBodyIndicesNotFound, blockNum)
	}
	sealed, err := p.store.SealedHeaderByNumber(blockNum)
	if err != nil || sealed == nil {
		return nil, nil, err
	}
	return tx, &eth.TransactionMeta{
		TxHash:      hash,
		Index:       id - indices.FirstTxNum,
		BlockHash:   sealed.Hash,
		BlockNumber: blockNum,
		BaseFee:     sealed.Header.BaseFee,
		Timestamp:   sealed.Header.Time,
	}, nil
}

// TransactionsByBlock returns the transactions of the given block, or nil.
func (p *BlockchainProvider) TransactionsByBlock(key eth.BlockHashOrNumber) (types.Transactions, error) {
	block, err := p.Block(key)
	if err != nil || block == nil {
		return nil, err
	}
	return block.Transactions(), nil
}

// TransactionsByTxRange returns the transactions with global numbers in
// [start, end], merged across the boundary.
func (p *BlockchainProvider) TransactionsByTxRange(start, end uint64) (types.Transactions, error) {
	if start > end {
		return nil, nil
	}
	out, err := p.store.TransactionsByTxRange(start, end)
	if err != nil {
		return nil, err
	}
	lookup := p.memRangeLookup()
	for id := start + uint64(len(out)); id <= end; {
		st, local, inMemory, err := p.blockStateByTxID(id, lookup)
		if err != nil {
			return nil, err
		}
		if !inMemory || st == nil {
			break
		}
		txs := st.Block().Block.Transactions()
		for ; id <= end && local < uint64(len(txs)); id, local = id+1, local+1 {
			out = append(out, txs[local])
		}
	}
	return out, nil
}

// SendersByTxRange returns the recovered senders of the transactions with
// global numbers in [start, end], merged across the boundary.
func (p *BlockchainProvider) SendersByTxRange(start, end uint64) ([]common.Address, error) {
	if start > end {
		return nil, nil
	}
	out, err := p.store.SendersByTxRange(start, end)
	if err != nil {
		return nil, err
	}
	lookup := p.memRangeLookup()
	for id := start + uint64(len(out)); id <= end; {
		st, local, inMemory, err := p.blockStateByTxID(id, lookup)
		if err != nil {
			return nil, err
		}
		if !inMemory || st == nil {
			break
		}
		senders := st.Block().Senders
		for ; id <= end && local < uint64(len(senders)); id, local = id+1, local+1 {
			out = append(out, senders[local])
		}
	}
	return out, nil
}
