package eth

import "errors"

var (
	// ErrHeaderNotFound happens when a header that is required to exist
	// (by number, hash, or derived lookup) cannot be found in either source.
	ErrHeaderNotFound = errors.New("header not found")
	// ErrBlockBodyIndicesNotFound happens when the transaction-numbering
	// record of a block is missing from the durable store.
	ErrBlockBodyIndicesNotFound = errors.New("block body indices not found")
	// ErrStateForHashNotFound happens when no state view exists for a block
	// hash that was presumed canonical.
	ErrStateForHashNotFound = errors.New("state for hash not found")
	// ErrStateForNumberNotFound happens when a canonical block number has no
	// resolvable state, e.g. the overlay shrank mid-walk.
	ErrStateForNumberNotFound = errors.New("state for number not found")
	// ErrFinalizedBlockNotFound happens when the finalized pointer was never
	// set by fork-choice signaling.
	ErrFinalizedBlockNotFound = errors.New("finalized block not found")
	// ErrSafeBlockNotFound happens when the safe pointer was never set by
	// fork-choice signaling.
	ErrSafeBlockNotFound = errors.New("safe block not found")
)
