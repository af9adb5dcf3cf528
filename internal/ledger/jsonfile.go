package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// JSONFileStore persists the chain as a JSON array in a single file. Every
// write replaces the file atomically (temp file + rename), so a crash leaves
// either the old or the new chain on disk.
type JSONFileStore struct {
	mu   sync.Mutex
	path string
}

// Compile-time interface check.
var _ Persister = (*JSONFileStore)(nil)

// NewJSONFileStore creates a store at path. The parent directory is created
// if it does not exist; the file itself is created on first write.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, errors.New("ledger: json store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &JSONFileStore{path: path}, nil
}

// Path returns the file the store writes to.
func (s *JSONFileStore) Path() string { return s.path }

// Load implements Persister.
func (s *JSONFileStore) Load(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Append implements Persister.
func (s *JSONFileStore) Append(_ context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read()
	if err != nil {
		return err
	}
	if entries[0].Index != len(stored) {
		return fmt.Errorf("%w: stored %d entries, got index %d", ErrOutOfSequence, len(stored), entries[0].Index)
	}
	return s.write(append(stored, entries...))
}

// Save implements Persister.
func (s *JSONFileStore) Save(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(entries)
}

// Reset implements Persister. The current file is renamed to
// <path>.rejected-<unix nanos>.
func (s *JSONFileStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	archive := s.path + ".rejected-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.Rename(s.path, archive); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("archive ledger file: %w", err)
	}
	return nil
}

func (s *JSONFileStore) read() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode ledger file: %w", ErrUndecodable, err)
	}
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = r.entry()
	}
	return entries, nil
}

func (s *JSONFileStore) write(entries []Entry) error {
	records := make([]record, len(entries))
	for i, e := range entries {
		records[i] = toRecord(e)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
