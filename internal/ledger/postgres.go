package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// writes to ledger_entries. The value is arbitrary but must be consistent
// across all filechain instances sharing a database.
const advisoryLockKey = int64(2_046_813_577)

var entryColumns = []string{"idx", "created_at", "label", "content_id", "prev_digest", "digest"}

// PostgresStore persists the chain to the ledger_entries table (see
// migrations/). Appends re-read the stored tail under an advisory lock and
// refuse entries that would fork it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Compile-time interface check.
var _ Persister = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Load implements Persister.
func (s *PostgresStore) Load(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, created_at, label, content_id, prev_digest, digest
		 FROM ledger_entries ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Index, &e.CreatedAt, &e.Label, &e.ContentID, &e.PrevDigest, &e.Digest); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ledger rows: %w", err)
	}
	return entries, nil
}

// Append implements Persister.
// It acquires a transaction-scoped advisory lock, checks the entries continue
// the stored tail, and inserts them in the same transaction.
func (s *PostgresStore) Append(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lock(ctx, tx); err != nil {
		return err
	}

	next, tailDigest := 0, GenesisPrev
	var tailIdx int
	err = tx.QueryRow(ctx,
		"SELECT idx, digest FROM ledger_entries ORDER BY idx DESC LIMIT 1",
	).Scan(&tailIdx, &tailDigest)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read ledger tail: %w", err)
	default:
		next = tailIdx + 1
	}

	if err := continuesTail(next, tailDigest, entries); err != nil {
		return err
	}
	first := entries[0]

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_entries (idx, created_at, label, content_id, prev_digest, digest)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.Index, e.CreatedAt, e.Label, e.ContentID, e.PrevDigest, e.Digest,
		); err != nil {
			return fmt.Errorf("insert ledger entry %d: %w", e.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	s.logger.Debug("ledger entries persisted",
		zap.Int("from", first.Index),
		zap.Int("count", len(entries)),
	)
	return nil
}

// Save implements Persister.
func (s *PostgresStore) Save(ctx context.Context, entries []Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lock(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM ledger_entries"); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ledger_entries"},
		entryColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.Index, e.CreatedAt, e.Label, e.ContentID, e.PrevDigest, e.Digest}, nil
		}),
	); err != nil {
		return fmt.Errorf("copy ledger entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

// Reset implements Persister. Stored rows are moved to ledger_entries_rejected.
func (s *PostgresStore) Reset(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lock(ctx, tx); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO ledger_entries_rejected (idx, created_at, label, content_id, prev_digest, digest, rejected_at)
		 SELECT idx, created_at, label, content_id, prev_digest, digest, now() FROM ledger_entries`,
	)
	if err != nil {
		return fmt.Errorf("archive ledger: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM ledger_entries"); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	s.logger.Warn("ledger entries archived", zap.Int64("rows", tag.RowsAffected()))
	return nil
}

// continuesTail reports whether entries extend a stored chain whose next
// index is next and whose tip digest is tailDigest. The batch itself must be
// contiguous and linked.
func continuesTail(next int, tailDigest string, entries []Entry) error {
	for _, e := range entries {
		if e.Index != next {
			return fmt.Errorf("%w: expected index %d, got %d", ErrOutOfSequence, next, e.Index)
		}
		if e.PrevDigest != tailDigest {
			return fmt.Errorf("%w: entry %d does not link to stored tail", ErrOutOfSequence, e.Index)
		}
		next, tailDigest = e.Index+1, e.Digest
	}
	return nil
}

// lock takes the ledger advisory lock for the lifetime of tx.
func lock(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	return nil
}
