package provider

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/evmstack/chaindata/eth"
)

// ReceiptByID returns the receipt of the transaction with the given global
// number, from either side of the boundary, or nil.
func (p *BlockchainProvider) ReceiptByID(id uint64) (*types.Receipt, error) {
	st, local, inMemory, err := p.blockStateByTxID(id, p.memRangeLookup())
	if err != nil {
		return nil, err
	}
	if !inMemory {
		return p.store.ReceiptByID(id)
	}
	if st == nil {
		return nil, nil
	}
	receipts := st.Receipts()
	if local >= uint64(len(receipts)) {
		return nil, fmt.Errorf("tx %d in block %s has no receipt at index %d", id, st.ID(), local)
	}
	return receipts[local], nil
}

// ReceiptByHash returns the receipt of the transaction with the given hash,
// or nil. Executed blocks carry exactly one receipt per transaction; an
// overlay block violating that is corrupted beyond recovery.
func (p *BlockchainProvider) ReceiptByHash(hash common.Hash) (*types.Receipt, error) {
	for _, st := range p.mem.CanonicalChain() {
		txs := st.Block().Block.Transactions()
		receipts := st.Receipts()
		if len(txs) != len(receipts) {
			panic(fmt.Sprintf("executed block %s has %d transactions but %d receipts", st.ID(), len(txs), len(receipts)))
		}
		for i, tx := range txs {
			if tx.Hash() == hash {
				return receipts[i], nil
			}
		}
	}
	return p.store.ReceiptByHash(hash)
}

// ReceiptsByBlock returns the receipts of the given block: a non-nil empty
// slice for a known empty block, nil for an unknown one.
func (p *BlockchainProvider) ReceiptsByBlock(key eth.BlockHashOrNumber) (types.Receipts, error) {
	if key.Hash != nil {
		if st := p.mem.StateByHash(*key.Hash); st != nil {
			return nonNilReceipts(st.Receipts()), nil
		}
		number, ok, err := p.store.BlockNumberByHash(*key.Hash)
		if err != nil || !ok {
			return nil, err
		}
		return p.store.ReceiptsByBlockNumber(number)
	}
	if st := p.mem.StateByNumber(key.Number); st != nil {
		return nonNilReceipts(st.Receipts()), nil
	}
	return p.store.ReceiptsByBlockNumber(key.Number)
}

func nonNilReceipts(receipts types.Receipts) types.Receipts {
	if receipts == nil {
		return types.Receipts{}
	}
	return receipts
}

// ReceiptsByBlockID resolves a number-or-tag-or-hash block reference to its
// receipts. The pending tag serves the pending block's receipts; a hash
// reference with RequireCanonical set fails with ErrStateForHashNotFound when
// the hash is not on the canonical chain.
func (p *BlockchainProvider) ReceiptsByBlockID(id rpc.BlockNumberOrHash) (types.Receipts, error) {
	if number, ok := id.Number(); ok {
		switch number {
		case rpc.PendingBlockNumber:
			_, receipts := p.mem.PendingBlockAndReceipts()
			return receipts, nil
		case rpc.LatestBlockNumber:
			return p.ReceiptsByBlock(eth.FromNumber(p.mem.GetCanonicalBlockNumber()))
		case rpc.FinalizedBlockNumber:
			h, ok := p.mem.GetFinalizedHeader()
			if !ok {
				return nil, eth.ErrFinalizedBlockNotFound
			}
			return p.ReceiptsByBlock(eth.FromHash(h.Hash))
		case rpc.SafeBlockNumber:
			h, ok := p.mem.GetSafeHeader()
			if !ok {
				return nil, eth.ErrSafeBlockNotFound
			}
			return p.ReceiptsByBlock(eth.FromHash(h.Hash))
		case rpc.EarliestBlockNumber:
			return p.ReceiptsByBlock(eth.FromNumber(0))
		default:
			return p.ReceiptsByBlock(eth.FromNumber(uint64(number)))
		}
	}
	hash, _ := id.Hash()
	if id.RequireCanonical {
		number, ok, err := p.BlockNumber(hash)
		if err != nil {
			return nil, err
		}
		if ok {
			canonical, err := p.BlockHash(number)
			if err != nil {
				return nil, err
			}
			ok = canonical == hash
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s is not canonical", eth.ErrStateForHashNotFound, hash.TerminalString())
		}
	}
	return p.ReceiptsByBlock(eth.FromHash(hash))
}

// ReceiptsByTxRange returns the receipts of the transactions with global
// numbers in [start, end], merged across the boundary.
func (p *BlockchainProvider) ReceiptsByTxRange(start, end uint64) (types.Receipts, error) {
	if start > end {
		return nil, nil
	}
	out, err := p.store.ReceiptsByTxRange(start, end)
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
		receipts := st.Receipts()
		for ; id <= end && local < uint64(len(receipts)); id, local = id+1, local+1 {
			out = append(out, receipts[local])
		}
	}
	return out, nil
}
