package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/state"
)

// LatestState returns a provider over the flat state as of the highest
// persisted block.
func (db *DB) LatestState() state.Provider {
	return &latestState{db: db}
}

// HistoryByBlockNumber returns a provider over the state as of the given
// persisted height. It fails with ErrStateForNumberNotFound above the store
// tail.
func (db *DB) HistoryByBlockNumber(number uint64) (state.Provider, error) {
	last, err := db.LastBlockNumber()
	if err != nil {
		return nil, err
	}
	hash, err := db.CanonicalHash(number)
	if err != nil {
		return nil, err
	}
	if number > last || hash == (common.Hash{}) {
		return nil, fmt.Errorf("%w: block %d", eth.ErrStateForNumberNotFound, number)
	}
	if number == last {
		return &latestState{db: db}, nil
	}
	return &historicalState{db: db, number: number, last: last}, nil
}

// HistoryByBlockHash returns a provider over the state as of the persisted
// block with the given hash. It fails with ErrStateForHashNotFound for
// unknown hashes.
func (db *DB) HistoryByBlockHash(hash common.Hash) (state.Provider, error) {
	number, ok, err := db.BlockNumberByHash(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", eth.ErrStateForHashNotFound, hash.TerminalString())
	}
	return db.HistoryByBlockNumber(number)
}

// latestState reads the flat account and storage tables directly.
type latestState struct {
	db *DB
}

func (s *latestState) Account(addr common.Address) (*eth.Account, error) {
	data, ok, err := s.db.get(accountKey(addr))
	if err != nil || !ok {
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("corrupt account %s: %w", addr, err)
	}
	return stored.toAccount(), nil
}

func (s *latestState) StorageSlot(addr common.Address, slot common.Hash) (common.Hash, error) {
	data, ok, err := s.db.get(storageKey(addr, slot))
	if err != nil || !ok {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

func (s *latestState) CodeByHash(codeHash common.Hash) ([]byte, error) {
	data, _, err := s.db.get(hashKey(codePrefix, codeHash))
	return data, err
}

// historicalState reconstructs the state at a past height by walking the
// changesets of the blocks after it. The changeset of block B records the
// pre-state of B, so the first diff entry for a key in blocks number+1..last
// is that key's value as of height number. Keys with no later diff still
// hold their latest value.
type historicalState struct {
	db     *DB
	number uint64
	last   uint64
}

func (s *historicalState) Account(addr common.Address) (*eth.Account, error) {
	for n := s.number + 1; n <= s.last; n++ {
		changes, err := s.db.AccountChangeSet(n)
		if err != nil {
			return nil, err
		}
		for _, c := range changes {
			if c.Address == addr {
				if c.Before == nil {
					return nil, nil
				}
				return c.Before.Copy(), nil
			}
		}
	}
	return (&latestState{db: s.db}).Account(addr)
}

func (s *historicalState) StorageSlot(addr common.Address, slot common.Hash) (common.Hash, error) {
	for n := s.number + 1; n <= s.last; n++ {
		changes, err := s.db.AccountChangeSet(n)
		if err != nil {
			return common.Hash{}, err
		}
		for _, c := range changes {
			if c.Address != addr {
				continue
			}
			for _, sc := range c.Storage {
				if sc.Slot == slot {
					return sc.Before, nil
				}
			}
			// The account itself was first touched here. If it did not exist
			// at the target height the slot was necessarily empty.
			if c.Before == nil {
				return common.Hash{}, nil
			}
		}
	}
	return (&latestState{db: s.db}).StorageSlot(addr, slot)
}

func (s *historicalState) CodeByHash(codeHash common.Hash) ([]byte, error) {
	// Code is content-addressed and never mutated in place.
	return (&latestState{db: s.db}).CodeByHash(codeHash)
}
