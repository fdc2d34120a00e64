// Package store is the durable side of the read path: an append-only block
// store over any ethdb key-value backend, keyed by the schema in schema.go.
// It persists canonical blocks below the in-memory boundary together with the
// derived records the provider needs: senders, receipts, total difficulty,
// global transaction numbering, pre-state change sets, and sync/prune
// checkpoints.
package store

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/evmstack/chaindata/metrics"
)

const (
	headerCacheSize = 4096
	bodyCacheSize   = 256
	tdCacheSize     = 1024
)

// DB is the durable store. Reads are cheap point gets against the backend
// plus small LRU caches; the append path is serialized internally. All read
// methods treat a missing record as legitimate absence and return the zero
// value without error.
type DB struct {
	log log.Logger
	m   metrics.Metricer
	kv  ethdb.KeyValueStore
	cfg *params.ChainConfig

	headerCache *lru.Cache[uint64, *types.Header]
	bodyCache   *lru.Cache[uint64, *types.Body]
	tdCache     *lru.Cache[uint64, *big.Int]

	wmu sync.Mutex // serializes WriteBlock appends
}

// New wraps an existing key-value backend. The chain config drives
// fork-activation gating and is not persisted here.
func New(logger log.Logger, m metrics.Metricer, kv ethdb.KeyValueStore, cfg *params.ChainConfig) *DB {
	if m == nil {
		m = metrics.NoopMetrics
	}
	headerCache, _ := lru.New[uint64, *types.Header](headerCacheSize)
	bodyCache, _ := lru.New[uint64, *types.Body](bodyCacheSize)
	tdCache, _ := lru.New[uint64, *big.Int](tdCacheSize)
	return &DB{
		log:         logger,
		m:           m,
		kv:          kv,
		cfg:         cfg,
		headerCache: headerCache,
		bodyCache:   bodyCache,
		tdCache:     tdCache,
	}
}

// Open opens (or creates) a pebble-backed store at the given path.
func Open(logger log.Logger, m metrics.Metricer, path string, cfg *params.ChainConfig) (*DB, error) {
	kv, err := pebble.New(path, 128, 128, "chaindata", false)
	if err != nil {
		return nil, fmt.Errorf("failed to open block store at %q: %w", path, err)
	}
	return New(logger, m, kv, cfg), nil
}

// ChainConfig returns the chain configuration this store was opened with.
func (db *DB) ChainConfig() *params.ChainConfig {
	return db.cfg
}

func (db *DB) Close() error {
	return db.kv.Close()
}

// get returns the raw value for key, with ok=false for a missing key.
func (db *DB) get(key []byte) ([]byte, bool, error) {
	ok, err := db.kv.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	data, err := db.kv.Get(key)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
