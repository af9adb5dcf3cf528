package ledger

import "context"

// Persister stores a ledger durably. Implementations must keep entries in
// chain order and must refuse entries that do not continue the stored tail.
type Persister interface {
	// Load returns every stored entry in chain order. A store that has never
	// been written returns an empty slice.
	Load(ctx context.Context) ([]Entry, error)

	// Append durably records entries. The first entry's Index must equal the
	// number of stored entries; all entries are written or none are.
	Append(ctx context.Context, entries ...Entry) error

	// Save replaces the stored chain with entries.
	Save(ctx context.Context, entries []Entry) error

	// Reset moves the stored chain aside so that a fresh chain can be written.
	// The rejected entries are archived rather than deleted.
	Reset(ctx context.Context) error
}
