package provider

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/memory"
	"github.com/evmstack/chaindata/state"
)

// overlayStateForHash builds a state view for an overlay block: the execution
// outputs of the chain segment down to the anchor, layered over the durable
// historical state at the anchor height. Returns nil if the hash is not in
// the overlay.
func (p *BlockchainProvider) overlayStateForHash(hash common.Hash) (state.Provider, error) {
	st := p.mem.StateByHash(hash)
	if st == nil {
		return nil, nil
	}
	chain := p.mem.ParentChain(st)
	anchorNum := chain[len(chain)-1].Number() - 1
	base, err := p.store.HistoryByBlockNumber(anchorNum)
	if err != nil {
		return nil, err
	}
	return memory.NewOverlayStateProvider(chain, base), nil
}

// pendingChainState builds the state view for the pending block: the pending
// block itself, its overlay ancestry, and the durable base under them.
func (p *BlockchainProvider) pendingChainState(st *memory.BlockState) (state.Provider, error) {
	chain := []*memory.BlockState{st}
	if parent := p.mem.StateByHash(st.ParentHash()); parent != nil {
		chain = append(chain, p.mem.ParentChain(parent)...)
	}
	anchorNum := chain[len(chain)-1].Number() - 1
	base, err := p.store.HistoryByBlockNumber(anchorNum)
	if err != nil {
		return nil, err
	}
	return memory.NewOverlayStateProvider(chain, base), nil
}

// LatestState returns the state at the canonical head: the overlay head's
// layered view when blocks are in memory, otherwise the store's flat latest
// state.
func (p *BlockchainProvider) LatestState() (state.Provider, error) {
	head := p.mem.GetCanonicalHead()
	if sp, err := p.overlayStateForHash(head.Hash); err != nil || sp != nil {
		return sp, err
	}
	return p.store.LatestState(), nil
}

// HistoryByBlockHash returns the state as of the block with the given hash,
// durable history first, then the overlay. Unknown hashes fail with
// ErrStateForHashNotFound.
func (p *BlockchainProvider) HistoryByBlockHash(hash common.Hash) (state.Provider, error) {
	sp, err := p.store.HistoryByBlockHash(hash)
	if err == nil {
		return sp, nil
	}
	if !errors.Is(err, eth.ErrStateForHashNotFound) {
		return nil, err
	}
	if sp, oerr := p.overlayStateForHash(hash); oerr != nil || sp != nil {
		return sp, oerr
	}
	return nil, err
}

// HistoryByBlockNumber returns the state as of the canonical block at the
// given height. Heights above the head fail with ErrStateForNumberNotFound.
func (p *BlockchainProvider) HistoryByBlockNumber(number uint64) (state.Provider, error) {
	if number > p.mem.GetCanonicalBlockNumber() {
		return nil, fmt.Errorf("%w: block %d is above the head", eth.ErrStateForNumberNotFound, number)
	}
	if sp, err := p.overlayStateForNumber(number); err != nil || sp != nil {
		return sp, err
	}
	return p.store.HistoryByBlockNumber(number)
}

func (p *BlockchainProvider) overlayStateForNumber(number uint64) (state.Provider, error) {
	hash, ok := p.mem.HashByNumber(number)
	if !ok {
		return nil, nil
	}
	return p.overlayStateForHash(hash)
}

// StateByBlockHash returns the state as of the block with the given hash,
// canonical history first, then the pending block. Unknown hashes fail with
// ErrStateForHashNotFound.
func (p *BlockchainProvider) StateByBlockHash(hash common.Hash) (state.Provider, error) {
	sp, err := p.HistoryByBlockHash(hash)
	if err == nil {
		return sp, nil
	}
	if !errors.Is(err, eth.ErrStateForHashNotFound) {
		return nil, err
	}
	if sp, perr := p.PendingStateByHash(hash); perr != nil || sp != nil {
		return sp, perr
	}
	return nil, err
}

// PendingState returns the state at the pending block, or the latest state
// when no pending block is tracked.
func (p *BlockchainProvider) PendingState() (state.Provider, error) {
	if st := p.mem.PendingState(); st != nil {
		return p.pendingChainState(st)
	}
	return p.LatestState()
}

// PendingStateByHash returns the pending block's state if the given hash
// matches it, else nil.
func (p *BlockchainProvider) PendingStateByHash(hash common.Hash) (state.Provider, error) {
	st := p.mem.PendingState()
	if st == nil || st.Hash() != hash {
		return nil, nil
	}
	return p.pendingChainState(st)
}

// StateByBlockNumberOrTag resolves a number-or-tag block reference to its
// state. Unset finalized/safe pointers fail with their sentinel errors.
func (p *BlockchainProvider) StateByBlockNumberOrTag(tag rpc.BlockNumber) (state.Provider, error) {
	switch tag {
	case rpc.LatestBlockNumber:
		return p.LatestState()
	case rpc.PendingBlockNumber:
		return p.PendingState()
	case rpc.EarliestBlockNumber:
		return p.HistoryByBlockNumber(0)
	case rpc.FinalizedBlockNumber:
		h, ok := p.mem.GetFinalizedHeader()
		if !ok {
			return nil, eth.ErrFinalizedBlockNotFound
		}
		return p.StateByBlockHash(h.Hash)
	case rpc.SafeBlockNumber:
		h, ok := p.mem.GetSafeHeader()
		if !ok {
			return nil, eth.ErrSafeBlockNotFound
		}
		return p.StateByBlockHash(h.Hash)
	default:
		return p.HistoryByBlockNumber(uint64(tag))
	}
}

// BasicAccount returns the account record at the latest state, or nil.
func (p *BlockchainProvider) BasicAccount(addr common.Address) (*eth.Account, error) {
	sp, err := p.LatestState()
	if err != nil {
		return nil, err
	}
	return sp.Account(addr)
}
