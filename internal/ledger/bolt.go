package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// BoltStore persists the chain in a bbolt bucket keyed by the 8-byte
// big-endian sequence index, so cursor order is chain order.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Persister = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func indexKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

// Load implements Persister.
func (s *BoltStore) Load(_ context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var r record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("%w: decode entry %d: %w", ErrUndecodable, binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, r.entry())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: load: %w", err)
	}
	return entries, nil
}

// Append implements Persister.
func (s *BoltStore) Append(_ context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)

		next := 0
		if k, _ := b.Cursor().Last(); k != nil {
			next = int(binary.BigEndian.Uint64(k)) + 1
		}
		if entries[0].Index != next {
			return fmt.Errorf("%w: stored %d entries, got index %d", ErrOutOfSequence, next, entries[0].Index)
		}
		return putEntries(b, entries)
	})
}

// Save implements Persister.
func (s *BoltStore) Save(_ context.Context, entries []Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil {
			return fmt.Errorf("boltstore: clear entries: %w", err)
		}
		b, err := tx.CreateBucket(bucketEntries)
		if err != nil {
			return fmt.Errorf("boltstore: create entries: %w", err)
		}
		return putEntries(b, entries)
	})
}

// Reset implements Persister. The stored entries are copied into a bucket
// named rejected-<unix nanos> before the entries bucket is emptied.
func (s *BoltStore) Reset(_ context.Context) error {
	name := []byte("rejected-" + strconv.FormatInt(time.Now().UnixNano(), 10))
	return s.db.Update(func(tx *bbolt.Tx) error {
		archive, err := tx.CreateBucket(name)
		if err != nil {
			return fmt.Errorf("boltstore: create archive bucket: %w", err)
		}
		err = tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			return archive.Put(append([]byte(nil), k...), append([]byte(nil), v...))
		})
		if err != nil {
			return fmt.Errorf("boltstore: archive entries: %w", err)
		}
		if err := tx.DeleteBucket(bucketEntries); err != nil {
			return fmt.Errorf("boltstore: clear entries: %w", err)
		}
		_, err = tx.CreateBucket(bucketEntries)
		return err
	})
}

func putEntries(b *bbolt.Bucket, entries []Entry) error {
	for _, e := range entries {
		data, err := json.Marshal(toRecord(e))
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", e.Index, err)
		}
		if err := b.Put(indexKey(e.Index), data); err != nil {
			return fmt.Errorf("boltstore: put entry %d: %w", e.Index, err)
		}
	}
	return nil
}
