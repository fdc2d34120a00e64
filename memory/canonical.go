package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/metrics"
	"github.com/evmstack/chaindata/state"
)

// CanonStateNotification is emitted on every atomic overlay update.
// On a plain commit Reverted is empty; on a reorg it carries the replaced
// segment. Both slices are ordered by ascending block number.
type CanonStateNotification struct {
	Committed []*eth.ExecutedBlock
	Reverted  []*eth.ExecutedBlock
}

// CanonicalInMemoryState tracks the canonical chain segment above the durable
// boundary, plus the pending block and the head/safe/finalized pointers set by
// fork-choice signaling.
//
// Invariant: walking parent hashes from the tip down visits every number in
// (anchor, tip] exactly once, strictly decreasing, without gaps. Commit and
// reorg preserve this by validating linkage before publishing.
type CanonicalInMemoryState struct {
	log log.Logger
	m   metrics.Metricer

	mu       sync.RWMutex
	byNumber map[uint64]*BlockState
	byHash   map[common.Hash]*BlockState
	tip      *BlockState // highest overlay block, nil when the overlay is empty

	head      eth.SealedHeader // always set after construction
	safe      *eth.SealedHeader
	finalized *eth.SealedHeader

	pending *BlockState

	forkchoiceAt time.Time
	transitionAt time.Time

	canonFeed event.FeedOf[CanonStateNotification]
}

// NewCanonicalInMemoryState creates an empty overlay anchored at the given
// head, which must be the latest durably persisted block. The finalized
// pointer may be nil if it was never recorded.
func NewCanonicalInMemoryState(logger log.Logger, m metrics.Metricer, head eth.SealedHeader, finalized *eth.SealedHeader) *CanonicalInMemoryState {
	if m == nil {
		m = metrics.NoopMetrics
	}
	s := &CanonicalInMemoryState{
		log:       logger,
		m:         m,
		byNumber:  make(map[uint64]*BlockState),
		byHash:    make(map[common.Hash]*BlockState),
		head:      head,
		finalized: finalized,
	}
	m.RecordCanonicalHead(head.ID())
	return s
}

func validateChain(blocks []*eth.ExecutedBlock) error {
	if len(blocks) == 0 {
		return fmt.Errorf("empty chain update")
	}
	for i := 1; i < len(blocks); i++ {
		prev, next := blocks[i-1], blocks[i]
		if next.Number() != prev.Number()+1 || next.ParentHash() != prev.Hash() {
			return fmt.Errorf("chain update not contiguous: %s does not extend %s", next.ID(), prev.ID())
		}
	}
	return nil
}

// CommitChain atomically extends the overlay with a new canonical segment and
// advances the head to its tip. The segment must link onto the current tip
// (or onto the head when the overlay is empty).
func (s *CanonicalInMemoryState) CommitChain(blocks []*eth.ExecutedBlock) error {
	if err := validateChain(blocks); err != nil {
		return err
	}
	s.mu.Lock()
	first := blocks[0]
	if s.tip != nil {
		if first.Number() != s.tip.Number()+1 || first.ParentHash() != s.tip.Hash() {
			s.mu.Unlock()
			return fmt.Errorf("commit does not extend tip %s: got %s", s.tip.ID(), first.ID())
		}
	} else if first.Number() != s.head.Number()+1 || first.ParentHash() != s.head.Hash {
		s.mu.Unlock()
		return fmt.Errorf("commit does not extend head %s: got %s", s.head.ID(), first.ID())
	}
	for _, b := range blocks {
		st := newBlockState(b)
		s.byNumber[b.Number()] = st
		s.byHash[b.Hash()] = st
		s.tip = st
	}
	head := s.tip.SealedHeader()
	s.head = head
	s.pending = nil
	s.mu.Unlock()

	s.m.RecordCanonicalHead(head.ID())
	s.log.Debug("Committed canonical chain segment", "first", blocks[0].ID(), "tip", head.ID())
	s.canonFeed.Send(CanonStateNotification{Committed: blocks})
	return nil
}

// ReorgChain atomically replaces the overlay segment from the new chain's
// first number upwards. The segment must link onto the retained block below
// the fork point (or onto the replaced segment's own anchor when the whole
// overlay is swapped). The replaced blocks are reported in the notification
// so downstream consumers can unwind.
func (s *CanonicalInMemoryState) ReorgChain(newBlocks []*eth.ExecutedBlock) error {
	if err := validateChain(newBlocks); err != nil {
		return err
	}
	s.mu.Lock()
	forkNum := newBlocks[0].Number()
	first := newBlocks[0]
	if parent, ok := s.byNumber[forkNum-1]; ok {
		if first.ParentHash() != parent.Hash() {
			s.mu.Unlock()
			return fmt.Errorf("reorg does not attach to retained block %s: got %s", parent.ID(), first.ID())
		}
	} else if old, ok := s.byNumber[forkNum]; ok {
		if first.ParentHash() != old.ParentHash() {
			s.mu.Unlock()
			return fmt.Errorf("reorg does not attach at the anchor of %s: got %s", old.ID(), first.ID())
		}
	} else if forkNum != s.head.Number()+1 || first.ParentHash() != s.head.Hash {
		s.mu.Unlock()
		return fmt.Errorf("reorg does not attach to head %s: got %s", s.head.ID(), first.ID())
	}
	var old []*eth.ExecutedBlock
	for num := forkNum; ; num++ {
		st, ok := s.byNumber[num]
		if !ok {
			break
		}
		old = append(old, st.Block())
		delete(s.byNumber, num)
		delete(s.byHash, st.Hash())
	}
	for _, b := range newBlocks {
		st := newBlockState(b)
		s.byNumber[b.Number()] = st
		s.byHash[b.Hash()] = st
		s.tip = st
	}
	head := s.tip.SealedHeader()
	s.head = head
	s.pending = nil
	s.mu.Unlock()

	s.m.RecordCanonicalHead(head.ID())
	s.m.RecordReorg(uint64(len(old)))
	s.log.Info("Reorged canonical chain segment", "fork", forkNum, "reverted", len(old), "tip", head.ID())
	s.canonFeed.Send(CanonStateNotification{Committed: newBlocks, Reverted: old})
	return nil
}

// PrunePersisted drops overlay blocks at or below the given durable boundary.
// Called after the persistence layer has advanced; readers still holding the
// pruned BlockStates keep them alive.
func (s *CanonicalInMemoryState) PrunePersisted(boundary uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for num, st := range s.byNumber {
		if num <= boundary {
			delete(s.byNumber, num)
			delete(s.byHash, st.Hash())
			if s.tip == st {
				s.tip = nil
			}
		}
	}
}

// StateByNumber returns the overlay block state with the given number, if any.
func (s *CanonicalInMemoryState) StateByNumber(number uint64) *BlockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byNumber[number]
}

// StateByHash returns the overlay block state with the given hash, if any.
func (s *CanonicalInMemoryState) StateByHash(hash common.Hash) *BlockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byHash[hash]
}

// HashByNumber returns the canonical hash of an overlay block.
func (s *CanonicalInMemoryState) HashByNumber(number uint64) (common.Hash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byNumber[number]
	if !ok {
		return common.Hash{}, false
	}
	return st.Hash(), true
}

// ChainSnapshot returns a point-in-time copy of the number index. Multi-step
// readers use it to observe one overlay state across all iterations.
func (s *CanonicalInMemoryState) ChainSnapshot() map[uint64]*BlockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[uint64]*BlockState, len(s.byNumber))
	for num, st := range s.byNumber {
		snap[num] = st
	}
	return snap
}

// CanonicalChain returns the overlay chain ordered from the tip down to the
// anchor's child.
func (s *CanonicalInMemoryState) CanonicalChain() []*BlockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parentChainLocked(s.tip)
}

// ParentChain returns the chain from the given state down to the lowest
// overlay block, inclusive, walking parent hashes through the index.
func (s *CanonicalInMemoryState) ParentChain(st *BlockState) []*BlockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parentChainLocked(st)
}

func (s *CanonicalInMemoryState) parentChainLocked(st *BlockState) []*BlockState {
	var chain []*BlockState
	for st != nil {
		chain = append(chain, st)
		st = s.byHash[st.ParentHash()]
	}
	return chain
}

// Anchor returns the block the overlay chain terminates at: the boundary
// block in durable storage. The second return is false when the overlay is
// empty.
func (s *CanonicalInMemoryState) Anchor(st *BlockState) (eth.BlockID, bool) {
	chain := s.ParentChain(st)
	if len(chain) == 0 {
		return eth.BlockID{}, false
	}
	lowest := chain[len(chain)-1]
	return eth.BlockID{Hash: lowest.ParentHash(), Number: lowest.Number() - 1}, true
}

// ChainInfo returns the best known canonical block.
func (s *CanonicalInMemoryState) ChainInfo() eth.ChainInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eth.ChainInfo{BestHash: s.head.Hash, BestNumber: s.head.Number()}
}

// GetCanonicalBlockNumber returns the head block number.
func (s *CanonicalInMemoryState) GetCanonicalBlockNumber() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head.Number()
}

// GetCanonicalHead returns the head pointer.
func (s *CanonicalInMemoryState) GetCanonicalHead() eth.SealedHeader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head
}

// SetCanonicalHead sets the head pointer from a fork-choice update.
func (s *CanonicalInMemoryState) SetCanonicalHead(header eth.SealedHeader) {
	s.mu.Lock()
	s.head = header
	s.mu.Unlock()
	s.m.RecordCanonicalHead(header.ID())
}

// SetSafe sets the safe pointer from a fork-choice update.
func (s *CanonicalInMemoryState) SetSafe(header eth.SealedHeader) {
	s.mu.Lock()
	s.safe = &header
	s.mu.Unlock()
	s.m.RecordSafe(header.ID())
}

// SetFinalized sets the finalized pointer from a fork-choice update.
func (s *CanonicalInMemoryState) SetFinalized(header eth.SealedHeader) {
	s.mu.Lock()
	s.finalized = &header
	s.mu.Unlock()
	s.m.RecordFinalized(header.ID())
}

// GetSafeHeader returns the safe pointer; ok is false if it was never set.
func (s *CanonicalInMemoryState) GetSafeHeader() (eth.SealedHeader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.safe == nil {
		return eth.SealedHeader{}, false
	}
	return *s.safe, true
}

// GetFinalizedHeader returns the finalized pointer; ok is false if it was
// never set.
func (s *CanonicalInMemoryState) GetFinalizedHeader() (eth.SealedHeader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.finalized == nil {
		return eth.SealedHeader{}, false
	}
	return *s.finalized, true
}

// GetSafeNumHash returns the safe pointer as a BlockID.
func (s *CanonicalInMemoryState) GetSafeNumHash() (eth.BlockID, bool) {
	h, ok := s.GetSafeHeader()
	if !ok {
		return eth.BlockID{}, false
	}
	return h.ID(), true
}

// GetFinalizedNumHash returns the finalized pointer as a BlockID.
func (s *CanonicalInMemoryState) GetFinalizedNumHash() (eth.BlockID, bool) {
	h, ok := s.GetFinalizedHeader()
	if !ok {
		return eth.BlockID{}, false
	}
	return h.ID(), true
}

// SetPendingBlock installs a built but not yet canonical block.
func (s *CanonicalInMemoryState) SetPendingBlock(block *eth.ExecutedBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = newBlockState(block)
}

// PendingState returns the pending block state, or nil if none is tracked.
func (s *CanonicalInMemoryState) PendingState() *BlockState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// PendingNumHash returns the pending block's id.
func (s *CanonicalInMemoryState) PendingNumHash() (eth.BlockID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return eth.BlockID{}, false
	}
	return s.pending.ID(), true
}

// PendingBlock returns the pending block, or nil.
func (s *CanonicalInMemoryState) PendingBlock() *types.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return nil
	}
	return s.pending.Block().Block
}

// PendingBlockWithSenders returns the pending block with recovered senders.
func (s *CanonicalInMemoryState) PendingBlockWithSenders() *eth.BlockWithSenders {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return nil
	}
	return &eth.BlockWithSenders{Block: s.pending.Block().Block, Senders: s.pending.Block().Senders}
}

// PendingBlockAndReceipts returns the pending block and its receipts.
func (s *CanonicalInMemoryState) PendingBlockAndReceipts() (*types.Block, types.Receipts) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return nil, nil
	}
	return s.pending.Block().Block, s.pending.Receipts()
}

// PendingHeader returns the pending block's header, or nil.
func (s *CanonicalInMemoryState) PendingHeader() *types.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return nil
	}
	return s.pending.Block().Block.Header()
}

// PendingSealedHeader returns the pending block's sealed header.
func (s *CanonicalInMemoryState) PendingSealedHeader() (eth.SealedHeader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return eth.SealedHeader{}, false
	}
	return s.pending.SealedHeader(), true
}

// OnForkchoiceUpdateReceived records the arrival time of a fork-choice signal.
func (s *CanonicalInMemoryState) OnForkchoiceUpdateReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forkchoiceAt = time.Now()
}

// LastReceivedUpdateTimestamp returns when the last fork-choice signal
// arrived; ok is false if none ever did.
func (s *CanonicalInMemoryState) LastReceivedUpdateTimestamp() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forkchoiceAt, !s.forkchoiceAt.IsZero()
}

// OnTransitionConfigurationExchanged records the arrival time of a
// transition-configuration exchange.
func (s *CanonicalInMemoryState) OnTransitionConfigurationExchanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionAt = time.Now()
}

// LastExchangedTransitionConfigurationTimestamp returns when the last
// transition-configuration exchange happened; ok is false if none ever did.
func (s *CanonicalInMemoryState) LastExchangedTransitionConfigurationTimestamp() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transitionAt, !s.transitionAt.IsZero()
}

// TransactionByHash scans the canonical overlay chain for a transaction,
// newest block first. The overlay keeps no hash index; the walk is linear in
// the number of in-memory transactions.
func (s *CanonicalInMemoryState) TransactionByHash(hash common.Hash) *types.Transaction {
	for _, st := range s.CanonicalChain() {
		for _, tx := range st.Block().Block.Transactions() {
			if tx.Hash() == hash {
				return tx
			}
		}
	}
	return nil
}

// TransactionByHashWithMeta is TransactionByHash plus the inclusion context.
func (s *CanonicalInMemoryState) TransactionByHashWithMeta(hash common.Hash) (*types.Transaction, *eth.TransactionMeta) {
	for _, st := range s.CanonicalChain() {
		block := st.Block().Block
		for i, tx := range block.Transactions() {
			if tx.Hash() == hash {
				return tx, &eth.TransactionMeta{
					TxHash:      hash,
					Index:       uint64(i),
					BlockHash:   st.Hash(),
					BlockNumber: st.Number(),
					BaseFee:     block.BaseFee(),
					Timestamp:   block.Time(),
				}
			}
		}
	}
	return nil, nil
}

// StateProviderForHash builds an overlay state view for the block with the
// given hash, layered over the durable base taken at the overlay anchor. If
// the hash is not in the overlay the base is returned unchanged in overlay
// form (empty in-memory chain).
func (s *CanonicalInMemoryState) StateProviderForHash(hash common.Hash, base state.Provider) *OverlayStateProvider {
	var chain []*BlockState
	if st := s.StateByHash(hash); st != nil {
		chain = s.ParentChain(st)
	}
	return NewOverlayStateProvider(chain, base)
}

// SubscribeCanonState subscribes to commit/reorg notifications.
func (s *CanonicalInMemoryState) SubscribeCanonState(ch chan<- CanonStateNotification) event.Subscription {
	return s.canonFeed.Subscribe(ch)
}
