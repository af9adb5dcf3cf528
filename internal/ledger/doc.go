// Package ledger implements a tamper-evident, append-only log that binds
// human filenames to the content identifiers returned by a content store.
//
// Every entry commits to its predecessor's digest, so editing, removing or
// reordering a stored entry breaks the chain and is caught by Verify. The
// chain starts empty; the genesis entry (label "Genesis", content ID "0",
// previous digest "0") is created by the first Append.
//
// MemoryLedger keeps the chain in process. Durability is optional and is
// provided by a Persister:
//   - JSONFileStore: a flat JSON file rewritten atomically.
//   - BoltStore: a bbolt bucket keyed by sequence index.
//   - PostgresStore: a table guarded by an advisory lock.
package ledger
