package memory

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/evmstack/chaindata/eth"
	"github.com/evmstack/chaindata/state"
)

// OverlayStateProvider serves point-in-time state for an overlay block by
// layering the execution output of the in-memory chain segment over a durable
// base view taken at the overlay anchor. The chain is ordered newest first;
// the first block that touched an account wins.
type OverlayStateProvider struct {
	chain []*BlockState
	base  state.Provider
}

var _ state.Provider = (*OverlayStateProvider)(nil)

// NewOverlayStateProvider builds a provider from an in-memory chain segment
// (newest first, possibly empty) and the durable base at its anchor.
func NewOverlayStateProvider(chain []*BlockState, base state.Provider) *OverlayStateProvider {
	return &OverlayStateProvider{chain: chain, base: base}
}

func (p *OverlayStateProvider) Account(addr common.Address) (*eth.Account, error) {
	for _, st := range p.chain {
		out := st.Block().Output
		if out == nil {
			continue
		}
		if acct, ok := out.Accounts[addr]; ok {
			return acct.Copy(), nil
		}
	}
	return p.base.Account(addr)
}

func (p *OverlayStateProvider) StorageSlot(addr common.Address, slot common.Hash) (common.Hash, error) {
	for _, st := range p.chain {
		out := st.Block().Output
		if out == nil {
			continue
		}
		if slots, ok := out.Storage[addr]; ok {
			if value, ok := slots[slot]; ok {
				return value, nil
			}
		}
		// A destroyed account clears its storage; stop before the durable
		// base can resurrect stale slots.
		if acct, ok := out.Accounts[addr]; ok && acct == nil {
			return common.Hash{}, nil
		}
	}
	return p.base.StorageSlot(addr, slot)
}

func (p *OverlayStateProvider) CodeByHash(codeHash common.Hash) ([]byte, error) {
	for _, st := range p.chain {
		out := st.Block().Output
		if out == nil {
			continue
		}
		if code, ok := out.Code[codeHash]; ok {
			return code, nil
		}
	}
	return p.base.CodeByHash(codeHash)
}
