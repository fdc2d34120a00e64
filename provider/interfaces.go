package provider

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/memory"
	"github.com/evmstack/chaindata/state"
)

// DurableStore is the append-only block store consumed by the provider. It
// holds every canonical block at or below the persisted boundary, together
// with the derived records: senders, receipts, total difficulty, global
// transaction numbering, pre-state change sets, and checkpoints. Absent
// records are zero values without error; errors are source failures.
// *store.DB is the reference implementation.
type DurableStore interface {
	LastBlockNumber() (uint64, error)
	ChainInfo() (eth.ChainInfo, error)
	ChainConfig() *params.ChainConfig
	CanonicalHash(number uint64) (common.Hash, error)
	BlockNumberByHash(hash common.Hash) (uint64, bool, error)

	HeaderByNumber(number uint64) (*types.Header, error)
	HeaderByHash(hash common.Hash) (*types.Header, error)
	SealedHeaderByNumber(number uint64) (*eth.SealedHeader, error)
	TotalDifficultyByNumber(number uint64) (*big.Int, error)
	BodyByNumber(number uint64) (*types.Body, error)
	BlockByNumber(number uint64) (*types.Block, error)
	BlockByHash(hash common.Hash) (*types.Block, error)
	BlockWithSendersByNumber(number uint64) (*eth.BlockWithSenders, error)
	BlockWithSendersByHash(hash common.Hash) (*eth.BlockWithSenders, error)
	SendersByBlockNumber(number uint64) ([]common.Address, error)
	BodyIndices(number uint64) (*eth.StoredBlockBodyIndices, error)
	OmmersByNumber(number uint64) ([]*types.Header, error)
	WithdrawalsByNumber(number uint64) (types.Withdrawals, error)
	RequestsByNumber(number uint64) ([][]byte, error)

	HeadersRange(start, end uint64) ([]*types.Header, error)
	SealedHeadersRange(start, end uint64) ([]eth.SealedHeader, error)
	SealedHeadersWhile(start, end uint64, predicate func(eth.SealedHeader) bool) ([]eth.SealedHeader, error)
	CanonicalHashesRange(start, end uint64) ([]common.Hash, error)
	BlocksRange(start, end uint64) ([]*types.Block, error)
	BlocksWithSendersRange(start, end uint64) ([]*eth.BlockWithSenders, error)
	TransactionsByBlockRange(start, end uint64) ([]types.Transactions, error)
	TransactionsByTxRange(start, end uint64) (types.Transactions, error)
	SendersByTxRange(start, end uint64) ([]common.Address, error)
	ReceiptsByTxRange(start, end uint64) (types.Receipts, error)

	TransactionIDByHash(hash common.Hash) (uint64, bool, error)
	TransactionByID(id uint64) (*types.Transaction, error)
	TransactionByIDNoHash(id uint64) (*types.Transaction, error)
	TransactionBlock(id uint64) (uint64, bool, error)
	TransactionSender(id uint64) (*common.Address, error)
	TransactionsByBlockNumber(number uint64) (types.Transactions, error)
	ReceiptByID(id uint64) (*types.Receipt, error)
	ReceiptByHash(hash common.Hash) (*types.Receipt, error)
	ReceiptsByBlockNumber(number uint64) (types.Receipts, error)

	LatestState() state.Provider
	HistoryByBlockNumber(number uint64) (state.Provider, error)
	HistoryByBlockHash(hash common.Hash) (state.Provider, error)

	AccountChangeSet(number uint64) ([]eth.AccountChange, error)
	StageCheckpoint(id string) (*eth.StageCheckpoint, error)
	PruneCheckpoint(segment string) (*eth.PruneCheckpoint, error)
}

// EnvConfigurer fills an execution-environment object for a block. The
// provider resolves the header and total difficulty; the configurer applies
// whatever policy the execution layer needs.
type EnvConfigurer interface {
	FillEnv(header *types.Header, cfg *params.ChainConfig, td *big.Int) error
}

// The reader interfaces below are the narrow capability views of
// *BlockchainProvider. Consumers depend on the smallest one that serves them.

type HeaderReader interface {
	Header(hash common.Hash) (*types.Header, error)
	HeaderByNumber(number uint64) (*types.Header, error)
	SealedHeaderByNumber(number uint64) (*eth.SealedHeader, error)
	HeadersRange(start, end uint64) ([]*types.Header, error)
	SealedHeadersRange(start, end uint64) ([]eth.SealedHeader, error)
	SealedHeadersWhile(start, end uint64, predicate func(eth.SealedHeader) bool) ([]eth.SealedHeader, error)
	HeaderTD(hash common.Hash) (*big.Int, error)
	HeaderTDByNumber(number uint64) (*big.Int, error)
}

type BlockNumReader interface {
	ChainInfo() (eth.ChainInfo, error)
	BestBlockNumber() (uint64, error)
	LastBlockNumber() (uint64, error)
	BlockHash(number uint64) (common.Hash, error)
	BlockNumber(hash common.Hash) (uint64, bool, error)
}

type BlockReader interface {
	Block(key eth.BlockHashOrNumber) (*types.Block, error)
	BlockWithSenders(key eth.BlockHashOrNumber) (*eth.BlockWithSenders, error)
	SealedBlockWithSenders(key eth.BlockHashOrNumber) (*eth.BlockWithSenders, error)
	FindBlockByHash(hash common.Hash, source BlockSource) (*types.Block, error)
	BlocksRange(start, end uint64) ([]*types.Block, error)
	BlocksWithSendersRange(start, end uint64) ([]*eth.BlockWithSenders, error)
	BodyIndices(number uint64) (*eth.StoredBlockBodyIndices, error)
	Ommers(key eth.BlockHashOrNumber) ([]*types.Header, error)
	PendingBlock() *types.Block
	PendingBlockWithSenders() *eth.BlockWithSenders
	PendingBlockAndReceipts() (*types.Block, types.Receipts)
}

type BlockIDReader interface {
	BlockByID(id rpc.BlockNumberOrHash) (*types.Block, error)
	HeaderByNumberOrTag(tag rpc.BlockNumber) (*types.Header, error)
	SealedHeaderByNumberOrTag(tag rpc.BlockNumber) (*eth.SealedHeader, error)
	HeaderByID(id rpc.BlockNumberOrHash) (*types.Header, error)
	SealedHeaderByID(id rpc.BlockNumberOrHash) (*eth.SealedHeader, error)
}

type TransactionReader interface {
	TransactionByID(id uint64) (*types.Transaction, error)
	TransactionByIDNoHash(id uint64) (*types.Transaction, error)
	TransactionIDByHash(hash common.Hash) (uint64, bool, error)
	TransactionByHash(hash common.Hash) (*types.Transaction, error)
	TransactionByHashWithMeta(hash common.Hash) (*types.Transaction, *eth.TransactionMeta, error)
	TransactionBlock(id uint64) (uint64, bool, error)
	TransactionSender(id uint64) (*common.Address, error)
	TransactionsByBlock(key eth.BlockHashOrNumber) (types.Transactions, error)
	TransactionsByBlockRange(start, end uint64) ([]types.Transactions, error)
	TransactionsByTxRange(start, end uint64) (types.Transactions, error)
	SendersByTxRange(start, end uint64) ([]common.Address, error)
}

type ReceiptReader interface {
	ReceiptByID(id uint64) (*types.Receipt, error)
	ReceiptByHash(hash common.Hash) (*types.Receipt, error)
	ReceiptsByBlock(key eth.BlockHashOrNumber) (types.Receipts, error)
	ReceiptsByBlockID(id rpc.BlockNumberOrHash) (types.Receipts, error)
	ReceiptsByTxRange(start, end uint64) (types.Receipts, error)
}

type WithdrawalsReader interface {
	WithdrawalsByBlock(key eth.BlockHashOrNumber, timestamp uint64) (types.Withdrawals, error)
	LatestWithdrawal() (*types.Withdrawal, error)
}

type RequestsReader interface {
	RequestsByBlock(key eth.BlockHashOrNumber, timestamp uint64) ([][]byte, error)
}

// StateReader is the factory surface for point-in-time state views.
type StateReader interface {
	LatestState() (state.Provider, error)
	StateByBlockHash(hash common.Hash) (state.Provider, error)
	HistoryByBlockNumber(number uint64) (state.Provider, error)
	HistoryByBlockHash(hash common.Hash) (state.Provider, error)
	PendingState() (state.Provider, error)
	PendingStateByHash(hash common.Hash) (state.Provider, error)
	StateByBlockNumberOrTag(tag rpc.BlockNumber) (state.Provider, error)
	BasicAccount(addr common.Address) (*eth.Account, error)
}

type ChangeSetReader interface {
	AccountBlockChangeSet(number uint64) ([]eth.AccountChange, error)
}

type CheckpointReader interface {
	StageCheckpoint(id string) (*eth.StageCheckpoint, error)
	PruneCheckpoint(segment string) (*eth.PruneCheckpoint, error)
}

// CanonChainTracker receives fork-choice signals and serves the pointers they
// set.
type CanonChainTracker interface {
	SetCanonicalHead(header eth.SealedHeader)
	SetSafe(header eth.SealedHeader)
	SetFinalized(header eth.SealedHeader)
	OnForkchoiceUpdateReceived()
	OnTransitionConfigurationExchanged()
	LastReceivedUpdateTimestamp() (time.Time, bool)
	LastExchangedTransitionConfigurationTimestamp() (time.Time, bool)
	GetSafeHeader() (eth.SealedHeader, bool)
	GetFinalizedHeader() (eth.SealedHeader, bool)
}

type CanonStateSubscriber interface {
	SubscribeCanonState(ch chan<- memory.CanonStateNotification) event.Subscription
}
