package ledger

import "context"

// Ledger is the interface for the append-only, hash-chained file log.
// MemoryLedger implements it; durability is provided by a Persister.
type Ledger interface {
	// Append records that label is stored under contentID. On an empty chain
	// the genesis entry is created first.
	Append(ctx context.Context, label, contentID string) (*Entry, error)

	// Entries returns a snapshot of the chain in order.
	Entries(ctx context.Context) ([]Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the total number of entries (including the genesis entry).
	Len(ctx context.Context) (int, error)

	// Verify walks the chain and reports whether it is intact. Tampering is
	// reported as false; the error is reserved for backend failures.
	Verify(ctx context.Context) (bool, error)

	// Root returns the digest of the most recent entry (the chain tip).
	Root(ctx context.Context) (string, error)
}
