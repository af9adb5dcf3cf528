package ledger

import (
	"time"
)

// Genesis field values. The genesis entry has no real predecessor or payload.
const (
	GenesisLabel     = "Genesis"
	GenesisContentID = "0"
	GenesisPrev      = "0"
)

// Entry is a single record in the file ledger. Entries are immutable once
// appended.
type Entry struct {
	Index      int       `json:"sequence_index"`
	CreatedAt  time.Time `json:"created_at"`
	Label      string    `json:"label"`      // filename as uploaded
	ContentID  string    `json:"content_id"` // CID returned by the content store
	PrevDigest string    `json:"prev_digest"`
	Digest     string    `json:"digest"`
}

// IsGenesis reports whether e is the chain root.
func (e *Entry) IsGenesis() bool {
	return e.Index == 0
}

// record is the persisted form of an Entry. CreatedAt is stored as Unix
// nanoseconds so that a round trip reproduces the exact value the digest
// was computed over.
type record struct {
	Index      int    `json:"sequence_index"`
	CreatedAt  int64  `json:"created_at"`
	Label      string `json:"label"`
	ContentID  string `json:"content_id"`
	PrevDigest string `json:"prev_digest"`
	Digest     string `json:"digest"`
}

func toRecord(e Entry) record {
	return record{
		Index:      e.Index,
		CreatedAt:  e.CreatedAt.UnixNano(),
		Label:      e.Label,
		ContentID:  e.ContentID,
		PrevDigest: e.PrevDigest,
		Digest:     e.Digest,
	}
}

func (r record) entry() Entry {
	return Entry{
		Index:      r.Index,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
		Label:      r.Label,
		ContentID:  r.ContentID,
		PrevDigest: r.PrevDigest,
		Digest:     r.Digest,
	}
}

// timestamp normalises t to the precision every backend can store exactly
// (PostgreSQL timestamptz keeps microseconds).
func timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
