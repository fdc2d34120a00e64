package eth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockID identifies a block by hash and number.
type BlockID struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

func (id BlockID) String() string {
	return fmt.Sprintf("%s:%d", id.Hash.String(), id.Number)
}

// TerminalString implements log.TerminalStringer, formatting a string for console
// output during logging.
func (id BlockID) TerminalString() string {
	return fmt.Sprintf("%s:%d", id.Hash.TerminalString(), id.Number)
}

// BlockHashOrNumber keys a block lookup by either hash or number. A nil Hash
// means the lookup is by Number.
type BlockHashOrNumber struct {
	Hash   *common.Hash
	Number uint64
}

// FromHash keys a lookup by block hash.
func FromHash(hash common.Hash) BlockHashOrNumber {
	return BlockHashOrNumber{Hash: &hash}
}

// FromNumber keys a lookup by block number.
func FromNumber(number uint64) BlockHashOrNumber {
	return BlockHashOrNumber{Number: number}
}

func (k BlockHashOrNumber) String() string {
	if k.Hash != nil {
		return k.Hash.String()
	}
	return fmt.Sprintf("%d", k.Number)
}

// ChainInfo is the best known canonical block of the chain.
type ChainInfo struct {
	BestHash   common.Hash
	BestNumber uint64
}

// SealedHeader is a header together with its hash.
// types.Header does not memoize its hash, so carrying the seal around avoids
// re-hashing on every lookup, and pins the identity the header was read under.
type SealedHeader struct {
	Hash   common.Hash
	Header *types.Header
}

// SealHeader hashes the given header and returns it sealed.
func SealHeader(h *types.Header) SealedHeader {
	return SealedHeader{Hash: h.Hash(), Header: h}
}

func (s SealedHeader) Number() uint64 {
	return s.Header.Number.Uint64()
}

func (s SealedHeader) ID() BlockID {
	return BlockID{Hash: s.Hash, Number: s.Number()}
}

func (s SealedHeader) ParentHash() common.Hash {
	return s.Header.ParentHash
}

func (s SealedHeader) String() string {
	return s.ID().String()
}
