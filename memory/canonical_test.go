package memory

import (
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/metrics"
	"github.com/evmstack/chaindata/state"
	"github.com/evmstack/chaindata/testutils"
)

func setupOverlay(t *testing.T) (*testutils.ChainGen, *CanonicalInMemoryState) {
	gen := testutils.NewChainGen()
	logger := testutils.Logger(t, slog.LevelDebug)
	anchor := gen.Block(0).SealedHeader()
	return gen, NewCanonicalInMemoryState(logger, metrics.NoopMetrics, anchor, nil)
}

func TestCommitChain(t *testing.T) {
	gen, overlay := setupOverlay(t)
	blocks := gen.Extend(3, 2)
	require.NoError(t, overlay.CommitChain(blocks))

	require.Equal(t, blocks[2].SealedHeader(), overlay.GetCanonicalHead())
	require.Equal(t, uint64(3), overlay.GetCanonicalBlockNumber())
	require.Equal(t, eth.ChainInfo{BestHash: blocks[2].Hash(), BestNumber: 3}, overlay.ChainInfo())

	for _, b := range blocks {
		require.Equal(t, b.Hash(), overlay.StateByNumber(b.Number()).Hash())
		require.Equal(t, b.Number(), overlay.StateByHash(b.Hash()).Number())
		hash, ok := overlay.HashByNumber(b.Number())
		require.True(t, ok)
		require.Equal(t, b.Hash(), hash)
	}
	require.Nil(t, overlay.StateByNumber(4))

	chain := overlay.CanonicalChain()
	require.Len(t, chain, 3)
	require.Equal(t, uint64(3), chain[0].Number())
	require.Equal(t, uint64(1), chain[2].Number())

	anchor, ok := overlay.Anchor(chain[0])
	require.True(t, ok)
	require.Equal(t, gen.Block(0).ID(), anchor)
}

func TestCommitChainRejectsBadLinkage(t *testing.T) {
	gen, overlay := setupOverlay(t)
	blocks := gen.Extend(3, 1)

	require.Error(t, overlay.CommitChain(nil))
	// Skipping the first block leaves a gap at the head.
	require.Error(t, overlay.CommitChain(blocks[1:]))
	require.NoError(t, overlay.CommitChain(blocks[:1]))
	// Re-committing the same block does not extend the tip.
	require.Error(t, overlay.CommitChain(blocks[:1]))
	require.NoError(t, overlay.CommitChain(blocks[1:]))
}

func TestReorgChain(t *testing.T) {
	gen, overlay := setupOverlay(t)
	oldBlocks := gen.Extend(3, 1)
	require.NoError(t, overlay.CommitChain(oldBlocks))

	ch := make(chan CanonStateNotification, 4)
	sub := overlay.SubscribeCanonState(ch)
	defer sub.Unsubscribe()

	fork := gen.Fork(1, 7)
	newBlocks := fork.Extend(3, 1)
	require.NotEqual(t, oldBlocks[1].Hash(), newBlocks[0].Hash())
	require.NoError(t, overlay.ReorgChain(newBlocks))

	require.Equal(t, newBlocks[2].SealedHeader(), overlay.GetCanonicalHead())
	require.Nil(t, overlay.StateByHash(oldBlocks[1].Hash()))
	require.Nil(t, overlay.StateByHash(oldBlocks[2].Hash()))
	require.Equal(t, newBlocks[0].Hash(), overlay.StateByNumber(2).Hash())

	note := <-ch
	require.Len(t, note.Committed, 3)
	require.Len(t, note.Reverted, 2)
	require.Equal(t, oldBlocks[1].Hash(), note.Reverted[0].Hash())
	require.Equal(t, oldBlocks[2].Hash(), note.Reverted[1].Hash())
	require.Equal(t, newBlocks[2].Hash(), note.Committed[2].Hash())
}

func TestReorgChainRejectsDetachedSegment(t *testing.T) {
	gen, overlay := setupOverlay(t)
	oldBlocks := gen.Extend(3, 1)
	require.NoError(t, overlay.CommitChain(oldBlocks))

	// Fork blocks 2 and 3 link to a fork block 1 that is in neither the
	// overlay nor the retained chain below it.
	fork := gen.Fork(0, 9)
	fork.Next(1)
	detached := fork.Extend(2, 1)
	require.Error(t, overlay.ReorgChain(detached))

	// The rejected segment must not have touched the overlay.
	require.Equal(t, oldBlocks[2].SealedHeader(), overlay.GetCanonicalHead())
	require.Equal(t, oldBlocks[1].Hash(), overlay.StateByNumber(2).Hash())
	require.Nil(t, overlay.StateByHash(detached[0].Hash()))

	// Replacing the whole overlay is fine when the new segment links to the
	// same anchor the old one did.
	whole := gen.Fork(0, 5).Extend(3, 1)
	require.NoError(t, overlay.ReorgChain(whole))
	require.Equal(t, whole[2].SealedHeader(), overlay.GetCanonicalHead())
}

func TestCommitNotification(t *testing.T) {
	gen, overlay := setupOverlay(t)
	ch := make(chan CanonStateNotification, 1)
	sub := overlay.SubscribeCanonState(ch)
	defer sub.Unsubscribe()

	blocks := gen.Extend(2, 1)
	require.NoError(t, overlay.CommitChain(blocks))
	note := <-ch
	require.Len(t, note.Committed, 2)
	require.Empty(t, note.Reverted)
}

func TestPendingBlock(t *testing.T) {
	gen, overlay := setupOverlay(t)
	require.Nil(t, overlay.PendingBlock())
	_, ok := overlay.PendingNumHash()
	require.False(t, ok)

	committed := gen.Extend(2, 1)
	require.NoError(t, overlay.CommitChain(committed))

	pending := gen.Next(2)
	overlay.SetPendingBlock(pending)

	require.Equal(t, pending.Hash(), overlay.PendingBlock().Hash())
	id, ok := overlay.PendingNumHash()
	require.True(t, ok)
	require.Equal(t, pending.ID(), id)
	bws := overlay.PendingBlockWithSenders()
	require.Equal(t, pending.Senders, bws.Senders)
	block, receipts := overlay.PendingBlockAndReceipts()
	require.Equal(t, pending.Hash(), block.Hash())
	require.Len(t, receipts, 2)
	sealed, ok := overlay.PendingSealedHeader()
	require.True(t, ok)
	require.Equal(t, pending.SealedHeader(), sealed)

	// A chain update obsoletes whatever was pending.
	require.NoError(t, overlay.CommitChain([]*eth.ExecutedBlock{pending}))
	require.Nil(t, overlay.PendingState())
}

func TestForkChoicePointers(t *testing.T) {
	gen, overlay := setupOverlay(t)
	_, ok := overlay.GetSafeHeader()
	require.False(t, ok)
	_, ok = overlay.GetFinalizedHeader()
	require.False(t, ok)
	_, ok = overlay.LastReceivedUpdateTimestamp()
	require.False(t, ok)
	_, ok = overlay.LastExchangedTransitionConfigurationTimestamp()
	require.False(t, ok)

	blocks := gen.Extend(2, 1)
	require.NoError(t, overlay.CommitChain(blocks))

	overlay.SetSafe(blocks[0].SealedHeader())
	overlay.SetFinalized(blocks[1].SealedHeader())
	overlay.OnForkchoiceUpdateReceived()
	overlay.OnTransitionConfigurationExchanged()

	safe, ok := overlay.GetSafeHeader()
	require.True(t, ok)
	require.Equal(t, blocks[0].SealedHeader(), safe)
	finalized, ok := overlay.GetFinalizedHeader()
	require.True(t, ok)
	require.Equal(t, blocks[1].SealedHeader(), finalized)

	safeID, ok := overlay.GetSafeNumHash()
	require.True(t, ok)
	require.Equal(t, blocks[0].ID(), safeID)
	finalizedID, ok := overlay.GetFinalizedNumHash()
	require.True(t, ok)
	require.Equal(t, blocks[1].ID(), finalizedID)

	_, ok = overlay.LastReceivedUpdateTimestamp()
	require.True(t, ok)
	_, ok = overlay.LastExchangedTransitionConfigurationTimestamp()
	require.True(t, ok)
}

func TestPrunePersisted(t *testing.T) {
	gen, overlay := setupOverlay(t)
	blocks := gen.Extend(4, 1)
	require.NoError(t, overlay.CommitChain(blocks))

	overlay.PrunePersisted(2)
	require.Nil(t, overlay.StateByNumber(1))
	require.Nil(t, overlay.StateByNumber(2))
	require.NotNil(t, overlay.StateByNumber(3))
	require.NotNil(t, overlay.StateByNumber(4))
	// The head pointer survives pruning; only the blocks leave.
	require.Equal(t, blocks[3].SealedHeader(), overlay.GetCanonicalHead())
}

func TestTransactionByHash(t *testing.T) {
	gen, overlay := setupOverlay(t)
	blocks := gen.Extend(3, 2)
	require.NoError(t, overlay.CommitChain(blocks))

	want := blocks[1].Block.Transactions()[1]
	got := overlay.TransactionByHash(want.Hash())
	require.NotNil(t, got)
	require.Equal(t, want.Hash(), got.Hash())

	tx, meta := overlay.TransactionByHashWithMeta(want.Hash())
	require.NotNil(t, tx)
	require.Equal(t, want.Hash(), meta.TxHash)
	require.Equal(t, uint64(1), meta.Index)
	require.Equal(t, blocks[1].Hash(), meta.BlockHash)
	require.Equal(t, uint64(2), meta.BlockNumber)

	require.Nil(t, overlay.TransactionByHash(common.HexToHash("0xdead")))
}

// stubState is a durable base with one known account.
type stubState struct {
	addr common.Address
	acct *eth.Account
}

func (s *stubState) Account(addr common.Address) (*eth.Account, error) {
	if addr == s.addr {
		return s.acct.Copy(), nil
	}
	return nil, nil
}

func (s *stubState) StorageSlot(addr common.Address, slot common.Hash) (common.Hash, error) {
	return common.HexToHash("0xba5e"), nil
}

func (s *stubState) CodeByHash(codeHash common.Hash) ([]byte, error) {
	return []byte{0xba, 0x5e}, nil
}

func TestOverlayStateProvider(t *testing.T) {
	gen, overlay := setupOverlay(t)
	blocks := gen.Extend(3, 2)
	require.NoError(t, overlay.CommitChain(blocks))

	base := &stubState{addr: common.HexToAddress("0x42"), acct: &eth.Account{Nonce: 9, Balance: big.NewInt(1)}}

	var sp state.Provider = overlay.StateProviderForHash(blocks[1].Hash(), base)

	// Sender nonce as of block 2, not block 3.
	acct, err := sp.Account(gen.Sender)
	require.NoError(t, err)
	require.NotNil(t, acct)
	require.Equal(t, uint64(4), acct.Nonce)

	// Accounts the overlay never touched come from the base.
	acct, err = sp.Account(base.addr)
	require.NoError(t, err)
	require.Equal(t, uint64(9), acct.Nonce)

	// Storage writes of later blocks are invisible.
	slot := common.BigToHash(big.NewInt(3))
	val, err := sp.StorageSlot(gen.Contract, slot)
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0xba5e"), val)
	slot = common.BigToHash(big.NewInt(2))
	val, err = sp.StorageSlot(gen.Contract, slot)
	require.NoError(t, err)
	require.Equal(t, blocks[1].Output.Storage[gen.Contract][slot], val)

	// Unknown hash yields the base view unchanged.
	sp = overlay.StateProviderForHash(common.HexToHash("0xdead"), base)
	acct, err = sp.Account(base.addr)
	require.NoError(t, err)
	require.Equal(t, uint64(9), acct.Nonce)
}
