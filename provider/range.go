package provider

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/memory"
)

// mergeRange assembles [start, end] across the durable boundary: the store
// serves the prefix it holds, the cursor advances past it, and the overlay is
// probed per ascending number for the rest. The first miss on either side
// ends the range; a partial result is returned without error.
func mergeRange[T any](p *BlockchainProvider, start, end uint64, durable func(start, end uint64) ([]T, error), fromState func(st *memory.BlockState) T) ([]T, error) {
	if start > end {
		return nil, nil
	}
	out, err := durable(start, end)
	if err != nil {
		return nil, err
	}
	lookup := p.memRangeLookup()
	for num := start + uint64(len(out)); num <= end; num++ {
		st := lookup(num)
		if st == nil {
			break
		}
		out = append(out, fromState(st))
	}
	return out, nil
}

// HeadersRange returns the canonical headers in [start, end], merged across
// the durable boundary, truncated at the first gap.
func (p *BlockchainProvider) HeadersRange(start, end uint64) ([]*types.Header, error) {
	return mergeRange(p, start, end, p.store.HeadersRange, func(st *memory.BlockState) *types.Header {
		return st.Block().Block.Header()
	})
}

// SealedHeadersRange is HeadersRange with hashes attached.
func (p *BlockchainProvider) SealedHeadersRange(start, end uint64) ([]eth.SealedHeader, error) {
	return mergeRange(p, start, end, p.store.SealedHeadersRange, (*memory.BlockState).SealedHeader)
}

// SealedHeadersWhile is SealedHeadersRange additionally halting at the first
// header the predicate rejects, on either side of the boundary.
func (p *BlockchainProvider) SealedHeadersWhile(start, end uint64, predicate func(eth.SealedHeader) bool) ([]eth.SealedHeader, error) {
	if start > end {
		return nil, nil
	}
	out, err := p.store.SealedHeadersWhile(start, end, predicate)
	if err != nil {
		return nil, err
	}
	// A durable result shorter than its available prefix means the predicate
	// struck; do not continue into the overlay then.
	last, err := p.store.LastBlockNumber()
	if err != nil {
		return nil, err
	}
	next := start + uint64(len(out))
	if next <= last && next <= end {
		return out, nil
	}
	lookup := p.memRangeLookup()
	for num := next; num <= end; num++ {
		st := lookup(num)
		if st == nil {
			break
		}
		sealed := st.SealedHeader()
		if !predicate(sealed) {
			break
		}
		out = append(out, sealed)
	}
	return out, nil
}

// CanonicalHashesRange returns the canonical hashes in [start, end], merged
// across the durable boundary.
func (p *BlockchainProvider) CanonicalHashesRange(start, end uint64) ([]common.Hash, error) {
	return mergeRange(p, start, end, p.store.CanonicalHashesRange, (*memory.BlockState).Hash)
}

// BlocksRange returns the canonical blocks in [start, end], merged across the
// durable boundary.
func (p *BlockchainProvider) BlocksRange(start, end uint64) ([]*types.Block, error) {
	return mergeRange(p, start, end, p.store.BlocksRange, func(st *memory.BlockState) *types.Block {
		return st.Block().Block
	})
}

// BlocksWithSendersRange is BlocksRange with recovered senders attached.
func (p *BlockchainProvider) BlocksWithSendersRange(start, end uint64) ([]*eth.BlockWithSenders, error) {
	return mergeRange(p, start, end, p.store.BlocksWithSendersRange, func(st *memory.BlockState) *eth.BlockWithSenders {
		return &eth.BlockWithSenders{Block: st.Block().Block, Senders: st.Block().Senders}
	})
}

// SealedBlocksWithSendersRange is BlocksWithSendersRange with every block
// hash computed up front.
func (p *BlockchainProvider) SealedBlocksWithSendersRange(start, end uint64) ([]*eth.BlockWithSenders, error) {
	blocks, err := p.BlocksWithSendersRange(start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range blocks {
		b.Block.Hash()
	}
	return blocks, nil
}

// TransactionsByBlockRange returns per-block transaction lists for [start,
// end]. Unlike the other ranges this prefers the overlay per number and only
// then falls back to the store, so a block that was just persisted and pruned
// from the overlay is still found.
func (p *BlockchainProvider) TransactionsByBlockRange(start, end uint64) ([]types.Transactions, error) {
	if start > end {
		return nil, nil
	}
	lookup := p.memRangeLookup()
	var out []types.Transactions
	for num := start; num <= end; num++ {
		if st := lookup(num); st != nil {
			out = append(out, st.Block().Block.Transactions())
			continue
		}
		txs, err := p.store.TransactionsByBlockNumber(num)
		if err != nil {
			return nil, err
		}
		if txs == nil {
			body, err := p.store.BodyByNumber(num)
			if err != nil {
				return nil, err
			}
			if body == nil {
				break
			}
		}
		out = append(out, txs)
	}
	return out, nil
}
