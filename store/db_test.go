package store

import (
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/stretchr/testify/require"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/metrics"
	"github.com/evmstack/chaindata/testutils"
)

func setupDB(t *testing.T, persisted uint64) (*testutils.ChainGen, *DB) {
	gen := testutils.NewChainGen()
	gen.Extend(int(persisted), 2)
	db := New(testutils.Logger(t, slog.LevelDebug), metrics.NoopMetrics, memorydb.New(), gen.Config)
	for n := uint64(0); n <= persisted; n++ {
		require.NoError(t, db.WriteBlock(gen.Block(n), gen.TD(n)))
	}
	return gen, db
}

func TestWriteBlockAppendRules(t *testing.T) {
	gen, db := setupDB(t, 3)

	last, err := db.LastBlockNumber()
	require.NoError(t, err)
	require.Equal(t, uint64(3), last)

	// Appending with a gap fails.
	gen.Extend(2, 1)
	require.Error(t, db.WriteBlock(gen.Block(5), gen.TD(5)))

	// A block at the right height but off the canonical parent fails.
	fork := gen.Fork(2, 9)
	fork.Next(1)
	require.Error(t, db.WriteBlock(fork.Next(1), nil))

	require.NoError(t, db.WriteBlock(gen.Block(4), gen.TD(4)))
	last, err = db.LastBlockNumber()
	require.NoError(t, err)
	require.Equal(t, uint64(4), last)
}

func TestHeaderAccessors(t *testing.T) {
	gen, db := setupDB(t, 4)

	for n := uint64(0); n <= 4; n++ {
		want := gen.Block(n)
		header, err := db.HeaderByNumber(n)
		require.NoError(t, err)
		require.Equal(t, want.Hash(), header.Hash())

		header, err = db.HeaderByHash(want.Hash())
		require.NoError(t, err)
		require.Equal(t, want.Hash(), header.Hash())

		sealed, err := db.SealedHeaderByNumber(n)
		require.NoError(t, err)
		require.Equal(t, want.SealedHeader(), *sealed)

		hash, err := db.CanonicalHash(n)
		require.NoError(t, err)
		require.Equal(t, want.Hash(), hash)

		number, ok, err := db.BlockNumberByHash(want.Hash())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, n, number)

		td, err := db.TotalDifficultyByNumber(n)
		require.NoError(t, err)
		require.Zero(t, gen.TD(n).Cmp(td))
	}

	header, err := db.HeaderByNumber(5)
	require.NoError(t, err)
	require.Nil(t, header)
	_, ok, err := db.BlockNumberByHash(common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBlockAccessors(t *testing.T) {
	gen, db := setupDB(t, 4)

	for n := uint64(0); n <= 4; n++ {
		want := gen.Block(n)
		block, err := db.BlockByNumber(n)
		require.NoError(t, err)
		require.Equal(t, want.Hash(), block.Hash())
		require.Equal(t, want.Block.Transactions().Len(), block.Transactions().Len())

		bws, err := db.BlockWithSendersByHash(want.Hash())
		require.NoError(t, err)
		require.Equal(t, want.Hash(), bws.Block.Hash())
		require.Equal(t, want.Senders, bws.Senders)
	}

	// Two transactions per block after the empty genesis.
	indices, err := db.BodyIndices(0)
	require.NoError(t, err)
	require.Equal(t, eth.StoredBlockBodyIndices{FirstTxNum: 0, TxCount: 0}, *indices)
	indices, err = db.BodyIndices(3)
	require.NoError(t, err)
	require.Equal(t, eth.StoredBlockBodyIndices{FirstTxNum: 4, TxCount: 2}, *indices)

	ommers, err := db.OmmersByNumber(2)
	require.NoError(t, err)
	require.Empty(t, ommers)

	withdrawals, err := db.WithdrawalsByNumber(3)
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)
	require.Equal(t, uint64(30), withdrawals[0].Index)

	requests, err := db.RequestsByNumber(3)
	require.NoError(t, err)
	require.Equal(t, gen.Block(3).Requests, requests)
}

func TestTransactionAccessors(t *testing.T) {
	gen, db := setupDB(t, 4)

	for n := uint64(1); n <= 4; n++ {
		block := gen.Block(n)
		first := 2 * (n - 1)
		for i, tx := range block.Block.Transactions() {
			id, ok, err := db.TransactionIDByHash(tx.Hash())
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, first+uint64(i), id)

			got, err := db.TransactionByID(id)
			require.NoError(t, err)
			require.Equal(t, tx.Hash(), got.Hash())

			blockNum, ok, err := db.TransactionBlock(id)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, n, blockNum)

			sender, err := db.TransactionSender(id)
			require.NoError(t, err)
			require.Equal(t, gen.Sender, *sender)
		}
	}

	// Flattened range across block boundaries: tx 1..6 spans blocks 1..4.
	txs, err := db.TransactionsByTxRange(1, 6)
	require.NoError(t, err)
	require.Len(t, txs, 6)
	require.Equal(t, gen.Block(1).Block.Transactions()[1].Hash(), txs[0].Hash())
	require.Equal(t, gen.Block(4).Block.Transactions()[0].Hash(), txs[5].Hash())

	senders, err := db.SendersByTxRange(0, 20)
	require.NoError(t, err)
	require.Len(t, senders, 8)

	_, ok, err := db.TransactionIDByHash(common.HexToHash("0xdead"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReceiptAccessors(t *testing.T) {
	gen, db := setupDB(t, 4)

	receipts, err := db.ReceiptsByBlockNumber(2)
	require.NoError(t, err)
	require.Equal(t, gen.Block(2).Receipts, receipts)

	// A persisted empty block still answers with an empty non-nil slice.
	receipts, err = db.ReceiptsByBlockNumber(0)
	require.NoError(t, err)
	require.NotNil(t, receipts)
	require.Empty(t, receipts)

	receipts, err = db.ReceiptsByBlockNumber(9)
	require.NoError(t, err)
	require.Nil(t, receipts)

	receipt, err := db.ReceiptByID(3)
	require.NoError(t, err)
	require.Equal(t, gen.Block(2).Receipts[1], receipt)

	txHash := gen.Block(3).Block.Transactions()[0].Hash()
	receipt, err = db.ReceiptByHash(txHash)
	require.NoError(t, err)
	require.Equal(t, gen.Block(3).Receipts[0], receipt)

	ranged, err := db.ReceiptsByTxRange(2, 5)
	require.NoError(t, err)
	require.Len(t, ranged, 4)
	require.Equal(t, gen.Block(2).Receipts[0], ranged[0])
}

func TestRangeAccessors(t *testing.T) {
	gen, db := setupDB(t, 4)

	headers, err := db.HeadersRange(1, 10)
	require.NoError(t, err)
	require.Len(t, headers, 4)
	require.Equal(t, gen.Block(1).Hash(), headers[0].Hash())

	sealed, err := db.SealedHeadersWhile(0, 10, func(h eth.SealedHeader) bool {
		return h.Number() <= 2
	})
	require.NoError(t, err)
	require.Len(t, sealed, 3)

	hashes, err := db.CanonicalHashesRange(2, 3)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{gen.Block(2).Hash(), gen.Block(3).Hash()}, hashes)

	blocks, err := db.BlocksRange(0, 99)
	require.NoError(t, err)
	require.Len(t, blocks, 5)

	perBlock, err := db.TransactionsByBlockRange(0, 99)
	require.NoError(t, err)
	require.Len(t, perBlock, 5)
	require.Len(t, perBlock[3], 2)
}

func TestChangeSetsAndCheckpoints(t *testing.T) {
	gen, db := setupDB(t, 3)

	changes, err := db.AccountChangeSet(2)
	require.NoError(t, err)
	require.Equal(t, gen.Block(2).Output.Reverts, changes)

	// Genesis records every created account with no prior state.
	changes, err = db.AccountChangeSet(0)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	for _, c := range changes {
		require.Nil(t, c.Before)
	}

	cp, err := db.StageCheckpoint("bodies")
	require.NoError(t, err)
	require.Nil(t, cp)
	require.NoError(t, db.SetStageCheckpoint("bodies", eth.StageCheckpoint{BlockNumber: 3}))
	cp, err = db.StageCheckpoint("bodies")
	require.NoError(t, err)
	require.Equal(t, uint64(3), cp.BlockNumber)

	pcp, err := db.PruneCheckpoint("receipts")
	require.NoError(t, err)
	require.Nil(t, pcp)
	require.NoError(t, db.SetPruneCheckpoint("receipts", eth.PruneCheckpoint{BlockNumber: 1, TxNumber: 2}))
	pcp, err = db.PruneCheckpoint("receipts")
	require.NoError(t, err)
	require.Equal(t, uint64(2), pcp.TxNumber)
}

func TestLatestState(t *testing.T) {
	gen, db := setupDB(t, 4)
	sp := db.LatestState()

	acct, err := sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(8), acct.Nonce)

	acct, err = sp.Account(common.HexToAddress("0x99"))
	require.NoError(t, err)
	require.Nil(t, acct)

	slot := common.BigToHash(big.NewInt(4))
	val, err := sp.StorageSlot(gen.Contract, slot)
	require.NoError(t, err)
	require.Equal(t, gen.Block(4).Output.Storage[gen.Contract][slot], val)

	contract, err := sp.Account(gen.Contract)
	require.NoError(t, err)
	code, err := sp.CodeByHash(contract.CodeHash)
	require.NoError(t, err)
	require.NotEmpty(t, code)
}

func TestHistoricalState(t *testing.T) {
	gen, db := setupDB(t, 4)

	sp, err := db.HistoryByBlockNumber(2)
	require.NoError(t, err)
	acct, err := sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(4), acct.Nonce)

	// The slot written by block 4 was empty at height 2.
	slot := common.BigToHash(big.NewInt(4))
	val, err := sp.StorageSlot(gen.Contract, slot)
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, val)

	// The slot written by block 2 already held its value.
	slot = common.BigToHash(big.NewInt(2))
	val, err = sp.StorageSlot(gen.Contract, slot)
	require.NoError(t, err)
	require.Equal(t, gen.Block(2).Output.Storage[gen.Contract][slot], val)

	// The recipient did not exist before the first transfer.
	sp, err = db.HistoryByBlockNumber(0)
	require.NoError(t, err)
	acct, err = sp.Account(gen.Recipient)
	require.NoError(t, err)
	require.Nil(t, acct)

	sp, err = db.HistoryByBlockHash(gen.Block(3).Hash())
	require.NoError(t, err)
	acct, err = sp.Account(gen.Sender)
	require.NoError(t, err)
	require.Equal(t, uint64(6), acct.Nonce)

	_, err = db.HistoryByBlockNumber(9)
	require.ErrorIs(t, err, eth.ErrStateForNumberNotFound)
	_, err = db.HistoryByBlockHash(common.HexToHash("0xdead"))
	require.ErrorIs(t, err, eth.ErrStateForHashNotFound)
}
