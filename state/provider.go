// Package state defines the point-in-time account state views served by the
// read path. Implementations are backed either by the durable store (latest or
// historical) or by the in-memory overlay layered on a durable base.
package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/evmstack/chaindata/eth"
)

// Provider is a read-only view of account state at one specific block.
// Lookups for absent data return zero values without error; errors are
// reserved for source failures.
type Provider interface {
	// Account returns the account record, or nil if the account does not
	// exist at this height.
	Account(addr common.Address) (*eth.Account, error)
	// StorageSlot returns the value of the given slot, or the zero hash if
	// unset at this height.
	StorageSlot(addr common.Address, slot common.Hash) (common.Hash, error)
	// CodeByHash returns the contract code with the given hash.
	// Code is content-addressed and therefore height-independent.
	CodeByHash(codeHash common.Hash) ([]byte, error)
}

// Code resolves the code of the given account through the provider.
func Code(p Provider, addr common.Address) ([]byte, error) {
	acct, err := p.Account(addr)
	if err != nil || acct == nil {
		return nil, err
	}
	if acct.CodeHash == (common.Hash{}) || acct.CodeHash == types.EmptyCodeHash {
		return nil, nil
	}
	return p.CodeByHash(acct.CodeHash)
}
