package store

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/evmstack/chaindata/eth"
)

// LastBlockNumber returns the number of the highest persisted block, or 0 if
// the store is empty.
func (db *DB) LastBlockNumber() (uint64, error) {
	data, ok, err := db.get(lastBlockKey)
	if err != nil || !ok {
		return 0, err
	}
	return decodeNumber(data), nil
}

// ChainInfo returns the id of the highest persisted block.
func (db *DB) ChainInfo() (eth.ChainInfo, error) {
	last, err := db.LastBlockNumber()
	if err != nil {
		return eth.ChainInfo{}, err
	}
	hash, err := db.CanonicalHash(last)
	if err != nil {
		return eth.ChainInfo{}, err
	}
	return eth.ChainInfo{BestHash: hash, BestNumber: last}, nil
}

// CanonicalHash returns the canonical hash at the given height, or the zero
// hash if no block is persisted there.
func (db *DB) CanonicalHash(number uint64) (common.Hash, error) {
	data, ok, err := db.get(numberKey(canonicalHashPrefix, number))
	if err != nil || !ok {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// BlockNumberByHash resolves a block hash to its height.
func (db *DB) BlockNumberByHash(hash common.Hash) (uint64, bool, error) {
	data, ok, err := db.get(hashKey(headerNumberPrefix, hash))
	if err != nil || !ok {
		return 0, false, err
	}
	return decodeNumber(data), true, nil
}

// HeaderByNumber returns the canonical header at the given height, or nil.
func (db *DB) HeaderByNumber(number uint64) (*types.Header, error) {
	if header, ok := db.headerCache.Get(number); ok {
		db.m.CacheGet("headers", true)
		return header, nil
	}
	db.m.CacheGet("headers", false)
	data, ok, err := db.get(numberKey(headerPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	header := new(types.Header)
	if err := rlp.DecodeBytes(data, header); err != nil {
		return nil, fmt.Errorf("corrupt header %d: %w", number, err)
	}
	db.headerCache.Add(number, header)
	db.m.CacheAdd("headers", db.headerCache.Len(), false)
	return header, nil
}

// HeaderByHash returns the header with the given hash, or nil.
func (db *DB) HeaderByHash(hash common.Hash) (*types.Header, error) {
	number, ok, err := db.BlockNumberByHash(hash)
	if err != nil || !ok {
		return nil, err
	}
	return db.HeaderByNumber(number)
}

// SealedHeaderByNumber returns the canonical header with its hash, or nil.
func (db *DB) SealedHeaderByNumber(number uint64) (*eth.SealedHeader, error) {
	hash, err := db.CanonicalHash(number)
	if err != nil || hash == (common.Hash{}) {
		return nil, err
	}
	header, err := db.HeaderByNumber(number)
	if err != nil || header == nil {
		return nil, err
	}
	return &eth.SealedHeader{Hash: hash, Header: header}, nil
}

// TotalDifficultyByNumber returns the total difficulty accumulated up to the
// given height, or nil if the block is not persisted.
func (db *DB) TotalDifficultyByNumber(number uint64) (*big.Int, error) {
	if td, ok := db.tdCache.Get(number); ok {
		db.m.CacheGet("td", true)
		return new(big.Int).Set(td), nil
	}
	db.m.CacheGet("td", false)
	data, ok, err := db.get(numberKey(tdPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	td := new(big.Int)
	if err := rlp.DecodeBytes(data, td); err != nil {
		return nil, fmt.Errorf("corrupt total difficulty %d: %w", number, err)
	}
	db.tdCache.Add(number, td)
	db.m.CacheAdd("td", db.tdCache.Len(), false)
	return new(big.Int).Set(td), nil
}

func (db *DB) body(number uint64) (*types.Body, error) {
	if body, ok := db.bodyCache.Get(number); ok {
		db.m.CacheGet("bodies", true)
		return body, nil
	}
	db.m.CacheGet("bodies", false)
	data, ok, err := db.get(numberKey(bodyPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	body := new(types.Body)
	if err := rlp.DecodeBytes(data, body); err != nil {
		return nil, fmt.Errorf("corrupt body %d: %w", number, err)
	}
	db.bodyCache.Add(number, body)
	db.m.CacheAdd("bodies", db.bodyCache.Len(), false)
	return body, nil
}

// BodyByNumber returns the canonical block body at the given height, or nil.
func (db *DB) BodyByNumber(number uint64) (*types.Body, error) {
	return db.body(number)
}

// BlockByNumber assembles the canonical block at the given height, or nil.
func (db *DB) BlockByNumber(number uint64) (*types.Block, error) {
	header, err := db.HeaderByNumber(number)
	if err != nil || header == nil {
		return nil, err
	}
	body, err := db.body(number)
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = new(types.Body)
	}
	return types.NewBlockWithHeader(header).WithBody(*body), nil
}

// BlockByHash assembles the block with the given hash, or nil.
func (db *DB) BlockByHash(hash common.Hash) (*types.Block, error) {
	number, ok, err := db.BlockNumberByHash(hash)
	if err != nil || !ok {
		return nil, err
	}
	return db.BlockByNumber(number)
}

// SendersByBlockNumber returns the recovered senders of the block's
// transactions, index-aligned with the body.
func (db *DB) SendersByBlockNumber(number uint64) ([]common.Address, error) {
	data, ok, err := db.get(numberKey(sendersPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	var senders []common.Address
	if err := rlp.DecodeBytes(data, &senders); err != nil {
		return nil, fmt.Errorf("corrupt senders %d: %w", number, err)
	}
	return senders, nil
}

// BlockWithSendersByNumber returns the block plus its recovered senders.
func (db *DB) BlockWithSendersByNumber(number uint64) (*eth.BlockWithSenders, error) {
	block, err := db.BlockByNumber(number)
	if err != nil || block == nil {
		return nil, err
	}
	senders, err := db.SendersByBlockNumber(number)
	if err != nil {
		return nil, err
	}
	return &eth.BlockWithSenders{Block: block, Senders: senders}, nil
}

// BlockWithSendersByHash returns the block plus its recovered senders.
func (db *DB) BlockWithSendersByHash(hash common.Hash) (*eth.BlockWithSenders, error) {
	number, ok, err := db.BlockNumberByHash(hash)
	if err != nil || !ok {
		return nil, err
	}
	return db.BlockWithSendersByNumber(number)
}

// BodyIndices returns the transaction-numbering record of the given block, or
// nil if the block is not persisted.
func (db *DB) BodyIndices(number uint64) (*eth.StoredBlockBodyIndices, error) {
	data, ok, err := db.get(numberKey(bodyIndicesPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	indices := new(eth.StoredBlockBodyIndices)
	if err := rlp.DecodeBytes(data, indices); err != nil {
		return nil, fmt.Errorf("corrupt body indices %d: %w", number, err)
	}
	return indices, nil
}

// OmmersByNumber returns the uncle headers of the given block.
func (db *DB) OmmersByNumber(number uint64) ([]*types.Header, error) {
	body, err := db.body(number)
	if err != nil || body == nil {
		return nil, err
	}
	return body.Uncles, nil
}

// WithdrawalsByNumber returns the withdrawals of the given block, or nil for
// pre-Shanghai blocks.
func (db *DB) WithdrawalsByNumber(number uint64) (types.Withdrawals, error) {
	body, err := db.body(number)
	if err != nil || body == nil {
		return nil, err
	}
	return body.Withdrawals, nil
}

// RequestsByNumber returns the consensus-layer requests of the given block.
func (db *DB) RequestsByNumber(number uint64) ([][]byte, error) {
	data, ok, err := db.get(numberKey(requestsPrefix, number))
	if err != nil || !ok {
		return nil, err
	}
	var requests [][]byte
	if err := rlp.DecodeBytes(data, &requests); err != nil {
		return nil, fmt.Errorf("corrupt requests %d: %w", number, err)
	}
	return requests, nil
}

// HeadersRange returns the canonical headers in [start, end], stopping at the
// first height with no persisted header.
func (db *DB) HeadersRange(start, end uint64) ([]*types.Header, error) {
	var headers []*types.Header
	for number := start; number <= end; number++ {
		header, err := db.HeaderByNumber(number)
		if err != nil {
			return nil, err
		}
		if header == nil {
			break
		}
		headers = append(headers, header)
	}
	return headers, nil
}

// SealedHeadersRange is HeadersRange with hashes attached.
func (db *DB) SealedHeadersRange(start, end uint64) ([]eth.SealedHeader, error) {
	var headers []eth.SealedHeader
	for number := start; number <= end; number++ {
		sealed, err := db.SealedHeaderByNumber(number)
		if err != nil {
			return nil, err
		}
		if sealed == nil {
			break
		}
		headers = append(headers, *sealed)
	}
	return headers, nil
}

// SealedHeadersWhile is SealedHeadersRange additionally halting at the first
// header rejected by the predicate. The rejected header is not returned and
// no later header is evaluated.
func (db *DB) SealedHeadersWhile(start, end uint64, predicate func(eth.SealedHeader) bool) ([]eth.SealedHeader, error) {
	var headers []eth.SealedHeader
	for number := start; number <= end; number++ {
		sealed, err := db.SealedHeaderByNumber(number)
		if err != nil {
			return nil, err
		}
		if sealed == nil || !predicate(*sealed) {
			break
		}
		headers = append(headers, *sealed)
	}
	return headers, nil
}

// CanonicalHashesRange returns the canonical hashes in [start, end], stopping
// at the first unpersisted height.
func (db *DB) CanonicalHashesRange(start, end uint64) ([]common.Hash, error) {
	var hashes []common.Hash
	for number := start; number <= end; number++ {
		hash, err := db.CanonicalHash(number)
		if err != nil {
			return nil, err
		}
		if hash == (common.Hash{}) {
			break
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// BlocksRange returns the canonical blocks in [start, end], stopping at the
// first unpersisted height.
func (db *DB) BlocksRange(start, end uint64) ([]*types.Block, error) {
	var blocks []*types.Block
	for number := start; number <= end; number++ {
		block, err := db.BlockByNumber(number)
		if err != nil {
			return nil, err
		}
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// BlocksWithSendersRange is BlocksRange with recovered senders attached.
func (db *DB) BlocksWithSendersRange(start, end uint64) ([]*eth.BlockWithSenders, error) {
	var blocks []*eth.BlockWithSenders
	for number := start; number <= end; number++ {
		block, err := db.BlockWithSendersByNumber(number)
		if err != nil {
			return nil, err
		}
		if block == nil {
			break
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}
