package ledger

import "errors"

var (
	// ErrValidation indicates an empty label or content ID was passed to Append.
	ErrValidation = errors.New("ledger: invalid entry input")

	// ErrNotFound indicates the requested index is outside the chain.
	ErrNotFound = errors.New("ledger: entry not found")

	// ErrPersistence indicates the persister failed to load or store entries.
	ErrPersistence = errors.New("ledger: persistence failure")

	// ErrCorruptChain indicates a loaded chain failed digest or link checks.
	ErrCorruptChain = errors.New("ledger: persisted chain failed verification")

	// ErrUndecodable indicates stored entries could not be decoded. Persisters
	// wrap it so Load can tell unreadable data apart from an I/O failure.
	ErrUndecodable = errors.New("ledger: persisted chain cannot be decoded")

	// ErrOutOfSequence indicates a persister was asked to store entries that do
	// not continue its stored tail.
	ErrOutOfSequence = errors.New("ledger: entries do not continue the stored chain")

	// ErrUnknownScheme indicates an unsupported digest scheme or hash name.
	ErrUnknownScheme = errors.New("ledger: unknown digest scheme")
)
