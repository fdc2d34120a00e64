package store

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/evmstack/chaindata/eth"
)

// Key schema. Every record lives under a one-byte prefix followed by a
// fixed-width big-endian block/transaction number or a hash, so that numeric
// keys sort in chain order.
var (
	headerPrefix        = []byte("h") // headerPrefix + num -> rlp(header)
	headerNumberPrefix  = []byte("H") // headerNumberPrefix + hash -> num
	canonicalHashPrefix = []byte("c") // canonicalHashPrefix + num -> hash
	bodyPrefix          = []byte("b") // bodyPrefix + num -> rlp(body)
	sendersPrefix       = []byte("s") // sendersPrefix + num -> rlp([]address)
	receiptsPrefix      = []byte("r") // receiptsPrefix + num -> rlp(storage receipts)
	tdPrefix            = []byte("t") // tdPrefix + num -> rlp(total difficulty)
	bodyIndicesPrefix   = []byte("i") // bodyIndicesPrefix + num -> rlp(body indices)
	txLookupPrefix      = []byte("l") // txLookupPrefix + tx hash -> tx num
	txBlockPrefix       = []byte("n") // txBlockPrefix + tx num -> block num
	requestsPrefix      = []byte("q") // requestsPrefix + num -> rlp(requests)
	changeSetPrefix     = []byte("x") // changeSetPrefix + num -> rlp(account changes)
	accountPrefix       = []byte("a") // accountPrefix + addr -> rlp(account)
	storagePrefix       = []byte("o") // storagePrefix + addr + slot -> value
	codePrefix          = []byte("C") // codePrefix + code hash -> code
	stagePrefix         = []byte("S") // stagePrefix + stage id -> rlp(checkpoint)
	prunePrefix         = []byte("P") // prunePrefix + segment -> rlp(checkpoint)

	lastBlockKey = []byte("LastBlock") // -> num of the highest persisted block
)

func encodeNumber(number uint64) []byte {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], number)
	return enc[:]
}

func decodeNumber(data []byte) uint64 {
	return binary.BigEndian.Uint64(data)
}

func numberKey(prefix []byte, number uint64) []byte {
	return append(append([]byte{}, prefix...), encodeNumber(number)...)
}

func hashKey(prefix []byte, hash common.Hash) []byte {
	return append(append([]byte{}, prefix...), hash.Bytes()...)
}

func accountKey(addr common.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr.Bytes()...)
}

func storageKey(addr common.Address, slot common.Hash) []byte {
	key := append(append([]byte{}, storagePrefix...), addr.Bytes()...)
	return append(key, slot.Bytes()...)
}

func stageKey(id string) []byte {
	return append(append([]byte{}, stagePrefix...), id...)
}

func pruneKey(segment string) []byte {
	return append(append([]byte{}, prunePrefix...), segment...)
}

// storedAccount is the rlp form of an account record.
type storedAccount struct {
	Nonce    uint64
	Balance  *big.Int
	CodeHash common.Hash
}

func toStoredAccount(a *eth.Account) storedAccount {
	balance := a.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	return storedAccount{Nonce: a.Nonce, Balance: balance, CodeHash: a.CodeHash}
}

func (sa storedAccount) toAccount() *eth.Account {
	return &eth.Account{Nonce: sa.Nonce, Balance: sa.Balance, CodeHash: sa.CodeHash}
}

type storedStorageChange struct {
	Slot   common.Hash
	Before common.Hash
}

// storedAccountChange is the rlp form of one pre-state diff entry. Present
// distinguishes "account existed with this state" from "account did not
// exist", which rlp cannot express through a nil pointer.
type storedAccountChange struct {
	Address common.Address
	Present bool
	Account storedAccount
	Storage []storedStorageChange
}

func toStoredChanges(changes []eth.AccountChange) []storedAccountChange {
	out := make([]storedAccountChange, 0, len(changes))
	for _, c := range changes {
		sc := storedAccountChange{Address: c.Address}
		if c.Before != nil {
			sc.Present = true
			sc.Account = toStoredAccount(c.Before)
		}
		for _, s := range c.Storage {
			sc.Storage = append(sc.Storage, storedStorageChange{Slot: s.Slot, Before: s.Before})
		}
		out = append(out, sc)
	}
	return out
}

func fromStoredChanges(stored []storedAccountChange) []eth.AccountChange {
	out := make([]eth.AccountChange, 0, len(stored))
	for _, sc := range stored {
		c := eth.AccountChange{Address: sc.Address}
		if sc.Present {
			c.Before = sc.Account.toAccount()
		}
		for _, s := range sc.Storage {
			c.Storage = append(c.Storage, eth.StorageChange{Slot: s.Slot, Before: s.Before})
		}
		out = append(out, c)
	}
	return out
}
