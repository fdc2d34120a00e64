// Package provider merges the durable block store and the in-memory canonical
// overlay into one uniform read path. Every lookup resolves identically
// whether the block still lives in memory or has been persisted: point
// lookups probe the overlay first and fall back to the store, ranges take the
// durable prefix and continue through the overlay, and the global transaction
// numbering spans both sides without a seam.
package provider

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/memory"
	"github.com/evmstack/chaindata/metrics"
)

// BlockSource selects where FindBlockByHash is allowed to look.
type BlockSource int

const (
	// SourceAny searches pending, overlay, and durable blocks.
	SourceAny BlockSource = iota
	// SourceCanonical searches overlay and durable blocks only.
	SourceCanonical
	// SourcePending searches the pending block only.
	SourcePending
)

// Config carries the provider's tunables.
type Config struct {
	// ConsistentRangeReads makes multi-step reads (range merges, transaction
	// number walks) capture the overlay once and serve every iteration from
	// that snapshot. When false, each step reads the live overlay: a
	// concurrent commit or reorg can then be observed partway through a
	// range, which matches the historical behavior of the read path.
	ConsistentRangeReads bool
}

// BlockchainProvider is the unified read path. It owns no locks: the overlay
// serializes its own mutations, the store serializes its own appends, and
// every provider method is safe for concurrent use.
type BlockchainProvider struct {
	log   log.Logger
	store DurableStore
	mem   *memory.CanonicalInMemoryState
	cfg   Config
}

// NewBlockchainProvider builds a provider over a non-empty durable store,
// anchoring a fresh overlay at the store's latest block. An empty store fails
// with ErrHeaderNotFound: there is no head to anchor at.
func NewBlockchainProvider(logger log.Logger, m metrics.Metricer, store DurableStore, cfg Config) (*BlockchainProvider, error) {
	last, err := store.LastBlockNumber()
	if err != nil {
		return nil, err
	}
	sealed, err := store.SealedHeaderByNumber(last)
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return nil, fmt.Errorf("%w: durable store has no latest block", eth.ErrHeaderNotFound)
	}
	mem := memory.NewCanonicalInMemoryState(logger, m, *sealed, nil)
	return NewBlockchainProviderWithState(logger, store, mem, cfg), nil
}

// NewBlockchainProviderWithState wires the provider to an existing overlay,
// shared with whichever component commits chain updates.
func NewBlockchainProviderWithState(logger log.Logger, store DurableStore, mem *memory.CanonicalInMemoryState, cfg Config) *BlockchainProvider {
	return &BlockchainProvider{log: logger, store: store, mem: mem, cfg: cfg}
}

// Canonical returns the overlay, for the components that feed it.
func (p *BlockchainProvider) Canonical() *memory.CanonicalInMemoryState {
	return p.mem
}

// ChainConfig returns the chain configuration of the underlying store.
func (p *BlockchainProvider) ChainConfig() *params.ChainConfig {
	return p.store.ChainConfig()
}

// memLookup resolves overlay blocks by number for one logical read. With
// ConsistentRangeReads a snapshot is captured up front so a multi-step read
// observes a single overlay state.
type memLookup func(number uint64) *memory.BlockState

func (p *BlockchainProvider) memRangeLookup() memLookup {
	if p.cfg.ConsistentRangeReads {
		snap := p.mem.ChainSnapshot()
		return func(number uint64) *memory.BlockState {
			return snap[number]
		}
	}
	return p.mem.StateByNumber
}

// ChainInfo returns the best known canonical block, which is the overlay head.
func (p *BlockchainProvider) ChainInfo() (eth.ChainInfo, error) {
	return p.mem.ChainInfo(), nil
}

// BestBlockNumber returns the number of the canonical head, memory included.
func (p *BlockchainProvider) BestBlockNumber() (uint64, error) {
	return p.mem.GetCanonicalBlockNumber(), nil
}

// LastBlockNumber returns the number of the highest durably persisted block.
func (p *BlockchainProvider) LastBlockNumber() (uint64, error) {
	return p.store.LastBlockNumber()
}

// BlockHash returns the canonical hash at the given height, overlay first,
// or the zero hash if the height is above the head or unknown.
func (p *BlockchainProvider) BlockHash(number uint64) (common.Hash, error) {
	if hash, ok := p.mem.HashByNumber(number); ok {
		return hash, nil
	}
	return p.store.CanonicalHash(number)
}

// BlockNumber resolves a block hash to its height, overlay first.
func (p *BlockchainProvider) BlockNumber(hash common.Hash) (uint64, bool, error) {
	if st := p.mem.StateByHash(hash); st != nil {
		return st.Number(), true, nil
	}
	return p.store.BlockNumberByHash(hash)
}

// Header returns the header with the given hash, or nil if unknown.
func (p *BlockchainProvider) Header(hash common.Hash) (*types.Header, error) {
	if st := p.mem.StateByHash(hash); st != nil {
		return st.Block().Block.Header(), nil
	}
	return p.store.HeaderByHash(hash)
}

// HeaderByNumber returns the canonical header at the given height, or nil.
func (p *BlockchainProvider) HeaderByNumber(number uint64) (*types.Header, error) {
	if st := p.mem.StateByNumber(number); st != nil {
		return st.Block().Block.Header(), nil
	}
	return p.store.HeaderByNumber(number)
}

// SealedHeaderByNumber returns the canonical header with its hash, or nil.
func (p *BlockchainProvider) SealedHeaderByNumber(number uint64) (*eth.SealedHeader, error) {
	if st := p.mem.StateByNumber(number); st != nil {
		sealed := st.SealedHeader()
		return &sealed, nil
	}
	return p.store.SealedHeaderByNumber(number)
}

// Block returns the block with the given key, or nil if unknown.
func (p *BlockchainProvider) Block(key eth.BlockHashOrNumber) (*types.Block, error) {
	if key.Hash != nil {
		if st := p.mem.StateByHash(*key.Hash); st != nil {
			return st.Block().Block, nil
		}
		return p.store.BlockByHash(*key.Hash)
	}
	if st := p.mem.StateByNumber(key.Number); st != nil {
		return st.Block().Block, nil
	}
	return p.store.BlockByNumber(key.Number)
}

// BlockWithSenders returns the block plus its recovered senders, or nil.
func (p *BlockchainProvider) BlockWithSenders(key eth.BlockHashOrNumber) (*eth.BlockWithSenders, error) {
	var st *memory.BlockState
	if key.Hash != nil {
		st = p.mem.StateByHash(*key.Hash)
	} else {
		st = p.mem.StateByNumber(key.Number)
	}
	if st != nil {
		return &eth.BlockWithSenders{Block: st.Block().Block, Senders: st.Block().Senders}, nil
	}
	if key.Hash != nil {
		return p.store.BlockWithSendersByHash(*key.Hash)
	}
	return p.store.BlockWithSendersByNumber(key.Number)
}

// SealedBlockWithSenders is BlockWithSenders with the block hash computed up
// front, so callers holding the result never pay for sealing later.
func (p *BlockchainProvider) SealedBlockWithSenders(key eth.BlockHashOrNumber) (*eth.BlockWithSenders, error) {
	bws, err := p.BlockWithSenders(key)
	if err != nil || bws == nil {
		return nil, err
	}
	bws.Block.Hash()
	return bws, nil
}

// FindBlockByHash looks a block up by hash within the given source.
func (p *BlockchainProvider) FindBlockByHash(hash common.Hash, source BlockSource) (*types.Block, error) {
	if source == SourceAny || source == SourcePending {
		if id, ok := p.mem.PendingNumHash(); ok && id.Hash == hash {
			return p.mem.PendingBlock(), nil
		}
		if source == SourcePending {
			return nil, nil
		}
	}
	if st := p.mem.StateByHash(hash); st != nil {
		return st.Block().Block, nil
	}
	return p.store.BlockByHash(hash)
}

// BodyIndices returns the transaction-numbering record of the canonical block
// at the given height. For overlay blocks the record does not exist durably
// and is reconstructed by walking forward from the store's tail: the first
// overlay block starts at the tail's NextTxNum, every later block at its
// parent's. Missing tail indices fail with ErrBlockBodyIndicesNotFound.
func (p *BlockchainProvider) BodyIndices(number uint64) (*eth.StoredBlockBodyIndices, error) {
	last, err := p.store.LastBlockNumber()
	if err != nil {
		return nil, err
	}
	if number <= last {
		return p.store.BodyIndices(number)
	}
	lookup := p.memRangeLookup()
	target := lookup(number)
	if target == nil {
		return nil, nil
	}
	anchor, err := p.store.BodyIndices(last)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, fmt.Errorf("%w: block %d", eth.ErrBlockBodyIndicesNotFound, last)
	}
	first := anchor.NextTxNum()
	for num := last + 1; num < number; num++ {
		st := lookup(num)
		if st == nil {
			return nil, nil
		}
		first += uint64(len(st.Block().Block.Transactions()))
	}
	return &eth.StoredBlockBodyIndices{
		FirstTxNum: first,
		TxCount:    uint64(len(target.Block().Block.Transactions())),
	}, nil
}

// Ommers returns the uncle headers of the given block. From the merge
// netsplit block onward ommers are gone from the protocol and the answer is
// always empty.
func (p *BlockchainProvider) Ommers(key eth.BlockHashOrNumber) ([]*types.Header, error) {
	number := key.Number
	if key.Hash != nil {
		n, ok, err := p.BlockNumber(*key.Hash)
		if err != nil || !ok {
			return nil, err
		}
		number = n
	}
	if netsplit := p.ChainConfig().MergeNetsplitBlock; netsplit != nil && number >= netsplit.Uint64() {
		return []*types.Header{}, nil
	}
	if st := p.mem.StateByNumber(number); st != nil {
		return st.Block().Block.Uncles(), nil
	}
	return p.store.OmmersByNumber(number)
}

// AccountBlockChangeSet returns the pre-state diff of the canonical block at
// the given height, from the overlay's revert log or the durable changeset.
func (p *BlockchainProvider) AccountBlockChangeSet(number uint64) ([]eth.AccountChange, error) {
	if st := p.mem.StateByNumber(number); st != nil {
		if out := st.Block().Output; out != nil {
			return out.Reverts, nil
		}
		return []eth.AccountChange{}, nil
	}
	return p.store.AccountChangeSet(number)
}

// StageCheckpoint returns the progress checkpoint of the given sync stage.
func (p *BlockchainProvider) StageCheckpoint(id string) (*eth.StageCheckpoint, error) {
	return p.store.StageCheckpoint(id)
}

// PruneCheckpoint returns the prune position of the given segment.
func (p *BlockchainProvider) PruneCheckpoint(segment string) (*eth.PruneCheckpoint, error) {
	return p.store.PruneCheckpoint(segment)
}

// PendingBlock returns the pending block, or nil if none is tracked.
func (p *BlockchainProvider) PendingBlock() *types.Block {
	return p.mem.PendingBlock()
}

// PendingBlockWithSenders returns the pending block with recovered senders.
func (p *BlockchainProvider) PendingBlockWithSenders() *eth.BlockWithSenders {
	return p.mem.PendingBlockWithSenders()
}

// PendingBlockAndReceipts returns the pending block and its receipts.
func (p *BlockchainProvider) PendingBlockAndReceipts() (*types.Block, types.Receipts) {
	return p.mem.PendingBlockAndReceipts()
}

// SubscribeCanonState subscribes to overlay commit/reorg notifications.
func (p *BlockchainProvider) SubscribeCanonState(ch chan<- memory.CanonStateNotification) event.Subscription {
	return p.mem.SubscribeCanonState(ch)
}

var (
	_ HeaderReader         = (*BlockchainProvider)(nil)
	_ BlockNumReader       = (*BlockchainProvider)(nil)
	_ BlockReader          = (*BlockchainProvider)(nil)
	_ BlockIDReader        = (*BlockchainProvider)(nil)
	_ TransactionReader    = (*BlockchainProvider)(nil)
	_ ReceiptReader        = (*BlockchainProvider)(nil)
	_ WithdrawalsReader    = (*BlockchainProvider)(nil)
	_ RequestsReader       = (*BlockchainProvider)(nil)
	_ StateReader          = (*BlockchainProvider)(nil)
	_ ChangeSetReader      = (*BlockchainProvider)(nil)
	_ CheckpointReader     = (*BlockchainProvider)(nil)
	_ CanonChainTracker    = (*BlockchainProvider)(nil)
	_ CanonStateSubscriber = (*BlockchainProvider)(nil)
)
