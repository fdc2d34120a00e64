package provider

import (
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/memory"
	"github.com/evmstack/chaindata/metrics"
	"github.com/evmstack/chaindata/store"
	"github.com/evmstack/chaindata/testutils"
)

// setup persists blocks 0..4 and commits blocks 5..9 to the overlay, so every
// test runs against a chain straddling the durable boundary.
func setup(t *testing.T, cfg Config) (*testutils.ChainGen, *BlockchainProvider) {
	gen := testutils.NewChainGen()
	gen.Extend(9, 2)
	logger := testutils.Logger(t, slog.LevelDebug)
	db := store.New(logger, metrics.NoopMetrics, memorydb.New(), gen.Config)
	for n := uint64(0); n <= 4; n++ {
		require.NoError(t, db.WriteBlock(gen.Block(n), gen.TD(n)))
	}
	p, err := NewBlockchainProvider(logger, metrics.NoopMetrics, db, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Canonical().CommitChain(gen.Blocks(5, 9)))
	return gen, p
}

func TestProviderInitRequiresBlocks(t *testing.T) {
	logger := testutils.Logger(t, slog.LevelDebug)
	db := store.New(logger, metrics.NoopMetrics, memorydb.New(), testutils.TestChainConfig())
	_, err := NewBlockchainProvider(logger, metrics.NoopMetrics, db, Config{})
	require.ErrorIs(t, err, eth.ErrHeaderNotFound)
}

func TestBestAndLastBlockNumbers(t *testing.T) {
	_, p := setup(t, Config{})
	best, err := p.BestBlockNumber()
	require.NoError(t, err)
	require.Equal(t, uint64(9), best)
	last, err := p.LastBlockNumber()
	require.NoError(t, err)
	require.Equal(t, uint64(4), last)
	info, err := p.ChainInfo()
	require.NoError(t, err)
	require.Equal(t, uint64(9), info.BestNumber)
}

func TestRangesAcrossBoundary(t *testing.T) {
	for _, consistent := range []bool{false, true} {
		gen, p := setup(t, Config{ConsistentRangeReads: consistent})

		headers, err := p.HeadersRange(0, 10)
		require.NoError(t, err)
		require.Len(t, headers, 10)
		for n, h := range headers {
			require.Equal(t, gen.Block(uint64(n)).Hash(), h.Hash())
		}

		sealed, err := p.SealedHeadersRange(3, 7)
		require.NoError(t, err)
		require.Len(t, sealed, 5)
		require.Equal(t, gen.Block(5).SealedHeader(), sealed[2])

		hashes, err := p.CanonicalHashesRange(0, 10)
		require.NoError(t, err)
		require.Len(t, hashes, 10)
		require.Equal(t, gen.Block(7).Hash(), hashes[7])

		blocks, err := p.BlocksRange(0, 10)
		require.NoError(t, err)
		require.Len(t, blocks, 10)

		withSenders, err := p.BlocksWithSendersRange(4, 6)
		require.NoError(t, err)
		require.Len(t, withSenders, 3)
		require.Equal(t, gen.Block(5).Senders, withSenders[1].Senders)

		perBlock, err := p.TransactionsByBlockRange(0, 10)
		require.NoError(t, err)
		require.Len(t, perBlock, 10)
		require.Len(t, perBlock[9], 2)
	}
}

func TestSealedHeadersWhile(t *testing.T) {
	_, p := setup(t, Config{})

	// The predicate halts inside the overlay.
	sealed, err := p.SealedHeadersWhile(0, 10, func(h eth.SealedHeader) bool {
		return h.Number() <= 8
	})
	require.NoError(t, err)
	require.Len(t, sealed, 9)
	require.Equal(t, uint64(8), sealed[8].Number())

	// The predicate halts inside the durable prefix; the overlay must not be
	// consulted past the rejection.
	sealed, err = p.SealedHeadersWhile(0, 10, func(h eth.SealedHeader) bool {
		return h.Number() <= 2
	})
	require.NoError(t, err)
	require.Len(t, sealed, 3)
}

func TestHashAndNumberLookupsAgree(t *testing.T) {
	gen, p := setup(t, Config{})
	for n := uint64(0); n <= 9; n++ {
		want := gen.Block(n)

		byNum, err := p.HeaderByNumber(n)
		require.NoError(t, err)
		byHash, err := p.Header(want.Hash())
		require.NoError(t, err)
		require.Equal(t, byNum.Hash(), byHash.Hash())

		blockByNum, err := p.Block(eth.FromNumber(n))
		require.NoError(t, err)
		blockByHash, err := p.Block(eth.FromHash(want.Hash()))
		require.NoError(t, err)
		require.Equal(t, blockByNum.Hash(), blockByHash.Hash())

		hash, err := p.BlockHash(n)
		require.NoError(t, err)
		require.Equal(t, want.Hash(), hash)
		number, ok, err := p.BlockNumber(want.Hash())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, n, number)
	}

	header, err := p.HeaderByNumber(10)
	require.NoError(t, err)
	require.Nil(t, header)
}

func TestGlobalTxNumbering(t *testing.T) {
	gen, p := setup(t, Config{})
	for n := uint64(1); n <= 9; n++ {
		block := gen.Block(n)
		indices, err := p.BodyIndices(n)
		require.NoError(t, err)
		require.Equal(t, 2*(n-1), indices.FirstTxNum)
		require.Equal(t, uint64(2), indices.TxCount)

		for i, tx := range block.Block.Transactions() {
			id, ok, err := p.TransactionIDByHash(tx.Hash())
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, indices.FirstTxNum+uint64(i), id)

			got, err := p.TransactionByID(id)
			require.NoError(t, err)
			require.Equal(t, tx.Hash(), got.Hash())

			blockNum, ok, err := p.TransactionBlock(id)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, n, blockNum)

			sender, err := p.TransactionSender(id)
			require.NoError(t, err)
			require.Equal(t, gen.Sender, *sender)
		}
	}

	// Past the overlay tip there is no transaction.
	tx, err := p.TransactionByID(18)
	require.NoError(t, err)
	require.Nil(t, tx)
	_, ok, err := p.TransactionIDByHash(common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransactionByHashAcrossBoundary(t *testing.T) {
	gen, p := setup(t, Config{})
	for _, n := range []uint64{2, 7} {
		want := gen.Block(n).Block.Transactions()[1]
		tx, err := p.TransactionByHash(want.Hash())
		require.NoError(t, err)
		require.Equal(t, want.Hash(), tx.Hash())

		tx, meta, err := p.TransactionByHashWithMeta(want.Hash())
		require.NoError(t, err)
		require.Equal(t, want.Hash(), tx.Hash())
		require.Equal(t, uint64(1), meta.Index)
		require.Equal(t, n, meta.BlockNumber)
		require.Equal(t, gen.Block(n).Hash(), meta.BlockHash)
		require.Equal(t, gen.Block(n).Block.Time(), meta.Timestamp)
	}
}

func TestTxRangesAcrossBoundary(t *testing.T) {
	gen, p := setup(t, Config{})

	// Global numbers 6..11 span durable block 4 and overlay blocks 5..6.
	txs, err := p.TransactionsByTxRange(6, 11)
	require.NoError(t, err)
	require.Len(t, txs, 6)
	require.Equal(t, gen.Block(4).Block.Transactions()[0].Hash(), txs[0].Hash())
	require.Equal(t, gen.Block(6).Block.Transactions()[1].Hash(), txs[5].Hash())

	senders, err := p.SendersByTxRange(0, 100)
	require.NoError(t, err)
	require.Len(t, senders, 18)

	receipts, err := p.ReceiptsByTxRange(6, 11)
	require.NoError(t, err)
	require.Len(t, receipts, 6)
	require.Equal(t, gen.Block(6).Receipts[1], receipts[5])
}

func TestReceipts(t *testing.T) {
	gen, p := setup(t, Config{})

	for _, n := range []uint64{3, 8} {
		block := gen.Block(n)
		receipts, err := p.ReceiptsByBlock(eth.FromNumber(n))
		require.NoError(t, err)
		require.Equal(t, block.Receipts, receipts)

		receipt, err := p.ReceiptByHash(block.Block.Transactions()[0].Hash())
		require.NoError(t, err)
		require.Equal(t, block.Receipts[0], receipt)

		receipt, err = p.ReceiptByID(2 * (n - 1))
		require.NoError(t, err)
		require.Equal(t, block.Receipts[0], receipt)
	}

	// Known empty block: empty non-nil. Unknown block: nil.
	receipts, err := p.ReceiptsByBlock(eth.FromNumber(0))
	require.NoError(t, err)
	require.NotNil(t, receipts)
	require.Empty(t, receipts)
	receipts, err = p.ReceiptsByBlock(eth.FromHash(common.HexToHash("0xdead")))
	require.NoError(t, err)
	require.Nil(t, receipts)
}

func TestReceiptsByBlockID(t *testing.T) {
	gen, p := setup(t, Config{})

	latest := rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber)
	receipts, err := p.ReceiptsByBlockID(latest)
	require.NoError(t, err)
	require.Equal(t, gen.Block(9).Receipts, receipts)

	_, err = p.ReceiptsByBlockID(rpc.BlockNumberOrHashWithNumber(rpc.FinalizedBlockNumber))
	require.ErrorIs(t, err, eth.ErrFinalizedBlockNotFound)
	_, err = p.ReceiptsByBlockID(rpc.BlockNumberOrHashWithNumber(rpc.SafeBlockNumber))
	require.ErrorIs(t, err, eth.ErrSafeBlockNotFound)

	p.SetFinalized(gen.Block(4).SealedHeader())
	receipts, err = p.ReceiptsByBlockID(rpc.BlockNumberOrHashWithNumber(rpc.FinalizedBlockNumber))
	require.NoError(t, err)
	require.Equal(t, gen.Block(4).Receipts, receipts)

	pending := gen.Next(1)
	p.Canonical().SetPendingBlock(pending)
	receipts, err = p.ReceiptsByBlockID(rpc.BlockNumberOrHashWithNumber(rpc.PendingBlockNumber))
	require.NoError(t, err)
	require.Equal(t, pending.Receipts, receipts)

	// A fork block's hash is known to nobody, and with RequireCanonical the
	// miss is an error rather than an empty answer.
	fork := gen.Fork(3, 5)
	forked := fork.Next(1)
	_, err = p.ReceiptsByBlockID(rpc.BlockNumberOrHashWithHash(forked.Hash(), true))
	require.ErrorIs(t, err, eth.ErrStateForHashNotFound)
	receipts, err = p.ReceiptsByBlockID(rpc.BlockNumberOrHashWithHash(forked.Hash(), false))
	require.NoError(t, err)
	require.Nil(t, receipts)
}

func TestHeaderTD(t *testing.T) {
	gen, p := setup(t, Config{})

	td, err := p.HeaderTDByNumber(3)
	require.NoError(t, err)
	require.Zero(t, gen.TD(3).Cmp(td))

	// Overlay blocks reuse the last persisted total difficulty.
	td, err = p.HeaderTDByNumber(7)
	require.NoError(t, err)
	require.Zero(t, gen.TD(4).Cmp(td))

	td, err = p.HeaderTD(gen.Block(8).Hash())
	require.NoError(t, err)
	require.Zero(t, gen.TD(4).Cmp(td))

	td, err = p.HeaderTDByNumber(42)
	require.NoError(t, err)
	require.Nil(t, td)
}

func TestBodyIndicesReconstruction(t *testing.T) {
	_, p := setup(t, Config{})

	// Overlay indices line up exactly with what the store would persist.
	indices, err := p.BodyIndices(9)
	require.NoError(t, err)
	require.Equal(t, eth.StoredBlockBodyIndices{FirstTxNum: 16, TxCount: 2}, *indices)

	indices, err = p.BodyIndices(11)
	require.NoError(t, err)
	require.Nil(t, indices)
}

func TestStateResolution(t *testing.T) {
	gen, p := setup(t, Config{})

	// Latest state is the overlay head's layered view.
	acct, err := p.BasicAccount(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(18), acct.Nonce)

	// Durable history.
	sp, err := p.HistoryByBlockNumber(2)
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(4), acct.Nonce)

	// Overlay history layers memory outputs over the durable base.
	sp, err = p.HistoryByBlockNumber(7)
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(14), acct.Nonce)

	sp, err = p.HistoryByBlockHash(gen.Block(6).Hash())
	require.NoError(t, err)
	slot := common.BigToHash(big.NewInt(6))
	val, err := sp.StorageSlot(gen.Contract, slot)
	require.NoError(t, err)
	require.Equal(t, gen.Block(6).Output.Storage[gen.Contract][slot], val)

	_, err = p.HistoryByBlockNumber(10)
	require.ErrorIs(t, err, eth.ErrStateForNumberNotFound)
	_, err = p.HistoryByBlockHash(common.HexToHash("0xdead"))
	require.ErrorIs(t, err, eth.ErrStateForHashNotFound)
	_, err = p.StateByBlockHash(common.HexToHash("0xdead"))
	require.ErrorIs(t, err, eth.ErrStateForHashNotFound)
}

func TestStateByBlockNumberOrTag(t *testing.T) {
	gen, p := setup(t, Config{})

	sp, err := p.StateByBlockNumberOrTag(rpc.LatestBlockNumber)
	require.NoError(t, err)
	acct, err := sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(18), acct.Nonce)

	sp, err = p.StateByBlockNumberOrTag(rpc.EarliestBlockNumber)
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(0), acct.Nonce)

	sp, err = p.StateByBlockNumberOrTag(rpc.BlockNumber(3))
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(6), acct.Nonce)

	_, err = p.StateByBlockNumberOrTag(rpc.FinalizedBlockNumber)
	require.ErrorIs(t, err, eth.ErrFinalizedBlockNotFound)
	_, err = p.StateByBlockNumberOrTag(rpc.SafeBlockNumber)
	require.ErrorIs(t, err, eth.ErrSafeBlockNotFound)

	p.SetSafe(gen.Block(6).SealedHeader())
	sp, err = p.StateByBlockNumberOrTag(rpc.SafeBlockNumber)
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(12), acct.Nonce)

	// Without a pending block the pending tag degrades to latest.
	sp, err = p.StateByBlockNumberOrTag(rpc.PendingBlockNumber)
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(18), acct.Nonce)

	pending := gen.Next(2)
	p.Canonical().SetPendingBlock(pending)
	sp, err = p.StateByBlockNumberOrTag(rpc.PendingBlockNumber)
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(20), acct.Nonce)

	psp, err := p.PendingStateByHash(pending.Hash())
	require.NoError(t, err)
	require.NotNil(t, psp)
	psp, err = p.PendingStateByHash(gen.Block(9).Hash())
	require.NoError(t, err)
	require.Nil(t, psp)
}

func TestPendingAccessors(t *testing.T) {
	gen, p := setup(t, Config{})
	require.Nil(t, p.PendingBlock())

	pending := gen.Next(2)
	p.Canonical().SetPendingBlock(pending)

	require.Equal(t, pending.Hash(), p.PendingBlock().Hash())
	require.Equal(t, pending.Senders, p.PendingBlockWithSenders().Senders)
	block, receipts := p.PendingBlockAndReceipts()
	require.Equal(t, pending.Hash(), block.Hash())
	require.Equal(t, pending.Receipts, receipts)

	found, err := p.FindBlockByHash(pending.Hash(), SourcePending)
	require.NoError(t, err)
	require.Equal(t, pending.Hash(), found.Hash())
	found, err = p.FindBlockByHash(pending.Hash(), SourceAny)
	require.NoError(t, err)
	require.Equal(t, pending.Hash(), found.Hash())
	// The pending block is not canonical yet.
	found, err = p.FindBlockByHash(pending.Hash(), SourceCanonical)
	require.NoError(t, err)
	require.Nil(t, found)
	found, err = p.FindBlockByHash(gen.Block(3).Hash(), SourceCanonical)
	require.NoError(t, err)
	require.Equal(t, gen.Block(3).Hash(), found.Hash())
	found, err = p.FindBlockByHash(gen.Block(3).Hash(), SourcePending)
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestTagDispatch(t *testing.T) {
	gen, p := setup(t, Config{})

	sealed, err := p.SealedHeaderByNumberOrTag(rpc.LatestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, gen.Block(9).SealedHeader(), *sealed)

	sealed, err = p.SealedHeaderByNumberOrTag(rpc.EarliestBlockNumber)
	require.NoError(t, err)
	require.Equal(t, gen.Block(0).Hash(), sealed.Hash)

	sealed, err = p.SealedHeaderByNumberOrTag(rpc.FinalizedBlockNumber)
	require.NoError(t, err)
	require.Nil(t, sealed)

	p.SetFinalized(gen.Block(4).SealedHeader())
	p.SetSafe(gen.Block(6).SealedHeader())
	sealed, err = p.SealedHeaderByNumberOrTag(rpc.FinalizedBlockNumber)
	require.NoError(t, err)
	require.Equal(t, gen.Block(4).SealedHeader(), *sealed)

	header, err := p.HeaderByNumberOrTag(rpc.SafeBlockNumber)
	require.NoError(t, err)
	require.Equal(t, gen.Block(6).Hash(), header.Hash())

	block, err := p.BlockByID(rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(7)))
	require.NoError(t, err)
	require.Equal(t, gen.Block(7).Hash(), block.Hash())
	block, err = p.BlockByID(rpc.BlockNumberOrHashWithHash(gen.Block(2).Hash(), false))
	require.NoError(t, err)
	require.Equal(t, gen.Block(2).Hash(), block.Hash())

	sealed, err = p.SealedHeaderByID(rpc.BlockNumberOrHashWithHash(gen.Block(8).Hash(), false))
	require.NoError(t, err)
	require.Equal(t, gen.Block(8).SealedHeader(), *sealed)
}

func TestWithdrawalsAndRequests(t *testing.T) {
	gen, p := setup(t, Config{})

	for _, n := range []uint64{3, 7} {
		block := gen.Block(n)
		withdrawals, err := p.WithdrawalsByBlock(eth.FromNumber(n), block.Block.Time())
		require.NoError(t, err)
		require.Len(t, withdrawals, 1)
		require.Equal(t, n*10, withdrawals[0].Index)

		requests, err := p.RequestsByBlock(eth.FromHash(block.Hash()), block.Block.Time())
		require.NoError(t, err)
		require.Equal(t, block.Requests, requests)
	}

	latest, err := p.LatestWithdrawal()
	require.NoError(t, err)
	require.Equal(t, uint64(90), latest.Index)
}

func TestWithdrawalsPreShanghai(t *testing.T) {
	gen, p := setup(t, Config{})
	shanghai := *gen.Config.ShanghaiTime
	prague := *gen.Config.PragueTime
	later := gen.Block(9).Block.Time() + 1
	gen.Config.ShanghaiTime = &later
	gen.Config.PragueTime = &later
	defer func() {
		gen.Config.ShanghaiTime = &shanghai
		gen.Config.PragueTime = &prague
	}()

	withdrawals, err := p.WithdrawalsByBlock(eth.FromNumber(3), gen.Block(3).Block.Time())
	require.NoError(t, err)
	require.Nil(t, withdrawals)
	requests, err := p.RequestsByBlock(eth.FromNumber(7), gen.Block(7).Block.Time())
	require.NoError(t, err)
	require.Nil(t, requests)
}

func TestOmmers(t *testing.T) {
	gen, p := setup(t, Config{})
	ommers, err := p.Ommers(eth.FromNumber(3))
	require.NoError(t, err)
	require.Empty(t, ommers)
	ommers, err = p.Ommers(eth.FromHash(gen.Block(7).Hash()))
	require.NoError(t, err)
	require.Empty(t, ommers)
}

func TestAccountBlockChangeSet(t *testing.T) {
	gen, p := setup(t, Config{})

	changes, err := p.AccountBlockChangeSet(3)
	require.NoError(t, err)
	require.Equal(t, gen.Block(3).Output.Reverts, changes)

	changes, err = p.AccountBlockChangeSet(7)
	require.NoError(t, err)
	require.Equal(t, gen.Block(7).Output.Reverts, changes)
}

func TestReorgThroughProvider(t *testing.T) {
	gen, p := setup(t, Config{})

	ch := make(chan memory.CanonStateNotification, 1)
	sub := p.SubscribeCanonState(ch)
	defer sub.Unsubscribe()

	fork := gen.Fork(6, 3)
	newBlocks := fork.Extend(2, 1)
	require.NoError(t, p.Canonical().ReorgChain(newBlocks))

	note := <-ch
	require.Len(t, note.Reverted, 3)
	require.Len(t, note.Committed, 2)

	best, err := p.BestBlockNumber()
	require.NoError(t, err)
	require.Equal(t, uint64(8), best)

	header, err := p.Header(gen.Block(8).Hash())
	require.NoError(t, err)
	require.Nil(t, header)
	header, err = p.Header(newBlocks[1].Hash())
	require.NoError(t, err)
	require.Equal(t, newBlocks[1].Hash(), header.Hash())

	// Durable blocks are untouched by the reorg.
	header, err = p.HeaderByNumber(3)
	require.NoError(t, err)
	require.Equal(t, gen.Block(3).Hash(), header.Hash())
}

type capturedEnv struct {
	header *types.Header
	cfg    *params.ChainConfig
	td     *big.Int
}

func (c *capturedEnv) FillEnv(header *types.Header, cfg *params.ChainConfig, td *big.Int) error {
	c.header, c.cfg, c.td = header, cfg, td
	return nil
}

func TestFillEnvAt(t *testing.T) {
	gen, p := setup(t, Config{})

	var env capturedEnv
	require.NoError(t, p.FillEnvAt(&env, rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(7))))
	require.Equal(t, gen.Block(7).Hash(), env.header.Hash())
	require.Equal(t, gen.Config, env.cfg)
	require.Zero(t, gen.TD(4).Cmp(env.td))

	err := p.FillEnvAt(&env, rpc.BlockNumberOrHashWithHash(common.HexToHash("0xdead"), false))
	require.ErrorIs(t, err, eth.ErrHeaderNotFound)
}

func TestChainTracking(t *testing.T) {
	gen, p := setup(t, Config{})

	_, ok := p.LastReceivedUpdateTimestamp()
	require.False(t, ok)
	p.OnForkchoiceUpdateReceived()
	_, ok = p.LastReceivedUpdateTimestamp()
	require.True(t, ok)

	_, ok = p.LastExchangedTransitionConfigurationTimestamp()
	require.False(t, ok)
	p.OnTransitionConfigurationExchanged()
	_, ok = p.LastExchangedTransitionConfigurationTimestamp()
	require.True(t, ok)

	p.SetCanonicalHead(gen.Block(8).SealedHeader())
	best, err := p.BestBlockNumber()
	require.NoError(t, err)
	require.Equal(t, uint64(8), best)
}

func TestCheckpointPassthrough(t *testing.T) {
	gen := testutils.NewChainGen()
	logger := testutils.Logger(t, slog.LevelDebug)
	db := store.New(logger, metrics.NoopMetrics, memorydb.New(), gen.Config)
	require.NoError(t, db.WriteBlock(gen.Block(0), gen.TD(0)))
	require.NoError(t, db.SetStageCheckpoint("headers", eth.StageCheckpoint{BlockNumber: 7}))
	p, err := NewBlockchainProvider(logger, metrics.NoopMetrics, db, Config{})
	require.NoError(t, err)

	cp, err := p.StageCheckpoint("headers")
	require.NoError(t, err)
	require.Equal(t, uint64(7), cp.BlockNumber)
	pcp, err := p.PruneCheckpoint("receipts")
	require.NoError(t, err)
	require.Nil(t, pcp)
}
