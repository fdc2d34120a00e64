package provider

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/evmstack/chaindata/eth"
)

// HeaderTDByNumber returns the total difficulty at the given height. Overlay
// blocks are post-merge by construction and carry no difficulty of their own,
// so the last persisted total difficulty is the answer for all of them.
func (p *BlockchainProvider) HeaderTDByNumber(number uint64) (*big.Int, error) {
	last, err := p.store.LastBlockNumber()
	if err != nil {
		return nil, err
	}
	if number > last && p.mem.StateByNumber(number) != nil {
		return p.store.TotalDifficultyByNumber(last)
	}
	return p.store.TotalDifficultyByNumber(number)
}

// HeaderTD returns the total difficulty of the block with the given hash.
func (p *BlockchainProvider) HeaderTD(hash common.Hash) (*big.Int, error) {
	number, ok, err := p.BlockNumber(hash)
	if err != nil || !ok {
		return nil, err
	}
	return p.HeaderTDByNumber(number)
}

// HeaderByNumberOrTag resolves a number-or-tag reference to a header, using
// the overlay pointers for the named tags. Unset finalized/safe pointers
// yield nil without error here; only state resolution treats them as errors.
func (p *BlockchainProvider) HeaderByNumberOrTag(tag rpc.BlockNumber) (*types.Header, error) {
	sealed, err := p.SealedHeaderByNumberOrTag(tag)
	if err != nil || sealed == nil {
		return nil, err
	}
	return sealed.Header, nil
}

// SealedHeaderByNumberOrTag is HeaderByNumberOrTag with the hash attached.
func (p *BlockchainProvider) SealedHeaderByNumberOrTag(tag rpc.BlockNumber) (*eth.SealedHeader, error) {
	switch tag {
	case rpc.LatestBlockNumber:
		head := p.mem.GetCanonicalHead()
		return &head, nil
	case rpc.PendingBlockNumber:
		if sealed, ok := p.mem.PendingSealedHeader(); ok {
			return &sealed, nil
		}
		return nil, nil
	case rpc.FinalizedBlockNumber:
		if sealed, ok := p.mem.GetFinalizedHeader(); ok {
			return &sealed, nil
		}
		return nil, nil
	case rpc.SafeBlockNumber:
		if sealed, ok := p.mem.GetSafeHeader(); ok {
			return &sealed, nil
		}
		return nil, nil
	case rpc.EarliestBlockNumber:
		return p.SealedHeaderByNumber(0)
	default:
		return p.SealedHeaderByNumber(uint64(tag))
	}
}

// HeaderByID resolves a number-or-tag-or-hash reference to a header.
func (p *BlockchainProvider) HeaderByID(id rpc.BlockNumberOrHash) (*types.Header, error) {
	if number, ok := id.Number(); ok {
		return p.HeaderByNumberOrTag(number)
	}
	hash, _ := id.Hash()
	return p.Header(hash)
}

// SealedHeaderByID resolves a number-or-tag-or-hash reference to a sealed
// header.
func (p *BlockchainProvider) SealedHeaderByID(id rpc.BlockNumberOrHash) (*eth.SealedHeader, error) {
	if number, ok := id.Number(); ok {
		return p.SealedHeaderByNumberOrTag(number)
	}
	hash, _ := id.Hash()
	header, err := p.Header(hash)
	if err != nil || header == nil {
		return nil, err
	}
	return &eth.SealedHeader{Hash: hash, Header: header}, nil
}

// BlockByID resolves a number-or-tag-or-hash reference to a block.
func (p *BlockchainProvider) BlockByID(id rpc.BlockNumberOrHash) (*types.Block, error) {
	if hash, ok := id.Hash(); ok {
		return p.Block(eth.FromHash(hash))
	}
	number, _ := id.Number()
	switch number {
	case rpc.PendingBlockNumber:
		return p.mem.PendingBlock(), nil
	case rpc.LatestBlockNumber:
		return p.Block(eth.FromNumber(p.mem.GetCanonicalBlockNumber()))
	case rpc.EarliestBlockNumber:
		return p.Block(eth.FromNumber(0))
	case rpc.FinalizedBlockNumber:
		if sealed, ok := p.mem.GetFinalizedHeader(); ok {
			return p.Block(eth.FromHash(sealed.Hash))
		}
		return nil, nil
	case rpc.SafeBlockNumber:
		if sealed, ok := p.mem.GetSafeHeader(); ok {
			return p.Block(eth.FromHash(sealed.Hash))
		}
		return nil, nil
	default:
		return p.Block(eth.FromNumber(uint64(number)))
	}
}

// WithdrawalsByBlock returns the block's withdrawals. Before the Shanghai
// activation at the block's timestamp there are none to return.
func (p *BlockchainProvider) WithdrawalsByBlock(key eth.BlockHashOrNumber, timestamp uint64) (types.Withdrawals, error) {
	number := key.Number
	if key.Hash != nil {
		n, ok, err := p.BlockNumber(*key.Hash)
		if err != nil || !ok {
			return nil, err
		}
		number = n
	}
	if !p.ChainConfig().IsShanghai(new(big.Int).SetUint64(number), timestamp) {
		return nil, nil
	}
	if st := p.mem.StateByNumber(number); st != nil {
		return st.Block().Block.Withdrawals(), nil
	}
	return p.store.WithdrawalsByNumber(number)
}

// LatestWithdrawal returns the last withdrawal of the best block, or nil.
func (p *BlockchainProvider) LatestWithdrawal() (*types.Withdrawal, error) {
	head := p.mem.GetCanonicalHead()
	withdrawals, err := p.WithdrawalsByBlock(eth.FromHash(head.Hash), head.Header.Time)
	if err != nil || len(withdrawals) == 0 {
		return nil, err
	}
	return withdrawals[len(withdrawals)-1], nil
}

// RequestsByBlock returns the block's consensus-layer requests. Before the
// Prague activation at the block's timestamp there are none to return.
func (p *BlockchainProvider) RequestsByBlock(key eth.BlockHashOrNumber, timestamp uint64) ([][]byte, error) {
	number := key.Number
	if key.Hash != nil {
		n, ok, err := p.BlockNumber(*key.Hash)
		if err != nil || !ok {
			return nil, err
		}
		number = n
	}
	if !p.ChainConfig().IsPrague(new(big.Int).SetUint64(number), timestamp) {
		return nil, nil
	}
	if st := p.mem.StateByNumber(number); st != nil {
		return st.Block().Requests, nil
	}
	return p.store.RequestsByNumber(number)
}

// FillEnvAt resolves the header and total difficulty of the referenced block
// and hands them to the configurer. A known header with no resolvable total
// difficulty is treated as not found.
func (p *BlockchainProvider) FillEnvAt(configurer EnvConfigurer, id rpc.BlockNumberOrHash) error {
	sealed, err := p.SealedHeaderByID(id)
	if err != nil {
		return err
	}
	if sealed == nil {
		return fmt.Errorf("%w: %v", eth.ErrHeaderNotFound, id)
	}
	td, err := p.HeaderTD(sealed.Hash)
	if err != nil {
		return err
	}
	if td == nil {
		return fmt.Errorf("%w: no total difficulty for %s", eth.ErrHeaderNotFound, sealed.ID())
	}
	return configurer.FillEnv(sealed.Header, p.ChainConfig(), td)
}

// Chain tracking below is pure delegation: the overlay owns the pointers.

func (p *BlockchainProvider) SetCanonicalHead(header eth.SealedHeader) {
	p.mem.SetCanonicalHead(header)
}

func (p *BlockchainProvider) SetSafe(header eth.SealedHeader) {
	p.mem.SetSafe(header)
}

func (p *BlockchainProvider) SetFinalized(header eth.SealedHeader) {
	p.mem.SetFinalized(header)
}

func (p *BlockchainProvider) GetSafeHeader() (eth.SealedHeader, bool) {
	return p.mem.GetSafeHeader()
}

func (p *BlockchainProvider) GetFinalizedHeader() (eth.SealedHeader, bool) {
	return p.mem.GetFinalizedHeader()
}

func (p *BlockchainProvider) OnForkchoiceUpdateReceived() {
	p.mem.OnForkchoiceUpdateReceived()
}

func (p *BlockchainProvider) OnTransitionConfigurationExchanged() {
	p.mem.OnTransitionConfigurationExchanged()
}

func (p *BlockchainProvider) LastReceivedUpdateTimestamp() (time.Time, bool) {
	return p.mem.LastReceivedUpdateTimestamp()
}

func (p *BlockchainProvider) LastExchangedTransitionConfigurationTimestamp() (time.Time, bool) {
	return p.mem.LastExchangedTransitionConfigurationTimestamp()
}
