package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation. With a
// Persister attached every append is written through before it becomes
// visible, and Load restores the chain at startup.
type MemoryLedger struct {
	mu        sync.RWMutex
	entries   []Entry
	digester  *Digester
	persister Persister // nil = in-memory only
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a MemoryLedger.
type Option func(*MemoryLedger)

// WithPersister attaches durable storage.
func WithPersister(p Persister) Option {
	return func(l *MemoryLedger) { l.persister = p }
}

// WithDigester overrides the default length-prefixed SHA-256 digester.
func WithDigester(d *Digester) Option {
	return func(l *MemoryLedger) { l.digester = d }
}

// WithLogger sets the logger used for load diagnostics and integrity failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *MemoryLedger) { l.logger = logger }
}

// WithClock overrides time.Now for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLedger) { l.now = now }
}

// New creates an empty MemoryLedger. The genesis entry is created by the
// first Append.
func New(opts ...Option) *MemoryLedger {
	l := &MemoryLedger{
		digester: DefaultDigester(),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append implements Ledger.
func (l *MemoryLedger) Append(ctx context.Context, label, contentID string) (*Entry, error) {
	if label == "" {
		return nil, fmt.Errorf("%w: label is empty", ErrValidation)
	}
	if contentID == "" {
		return nil, fmt.Errorf("%w: content id is empty", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var pending []Entry
	prevDigest := ""
	if len(l.entries) == 0 {
		genesis := l.newEntry(0, GenesisLabel, GenesisContentID, GenesisPrev)
		pending = append(pending, genesis)
		prevDigest = genesis.Digest
	} else {
		prevDigest = l.entries[len(l.entries)-1].Digest
	}

	entry := l.newEntry(len(l.entries)+len(pending), label, contentID, prevDigest)
	pending = append(pending, entry)

	if l.persister != nil {
		if err := l.persister.Append(ctx, pending...); err != nil {
			return nil, fmt.Errorf("%w: append entry %d: %w", ErrPersistence, entry.Index, err)
		}
	}

	l.entries = append(l.entries, pending...)
	if len(pending) > 1 {
		l.logger.Info("ledger genesis created", zap.String("digest", pending[0].Digest))
	}
	l.logger.Debug("ledger entry appended",
		zap.Int("idx", entry.Index),
		zap.String("label", entry.Label),
		zap.String("content_id", entry.ContentID),
	)
	return &entry, nil
}

func (l *MemoryLedger) newEntry(index int, label, contentID, prevDigest string) Entry {
	e := Entry{
		Index:      index,
		CreatedAt:  timestamp(l.now()),
		Label:      label,
		ContentID:  contentID,
		PrevDigest: prevDigest,
	}
	e.Digest = l.digester.Digest(&e)
	return e
}

// Entries implements Ledger.
func (l *MemoryLedger) Entries(_ context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, index int) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrNotFound, index)
	}
	e := l.entries[index]
	return &e, nil
}

// Len implements Ledger.
func (l *MemoryLedger) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(_ context.Context) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ok, failedAt := VerifyChain(l.entries, l.digester)
	if !ok {
		l.logger.Warn("ledger integrity check failed", zap.Int("idx", failedAt))
	}
	return ok, nil
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return "", nil
	}
	return l.entries[len(l.entries)-1].Digest, nil
}

// Load replaces the in-memory chain with the persisted one. Every loaded
// entry is re-verified; each mismatch is logged. A chain that cannot be
// decoded or fails verification is archived through the persister's Reset,
// the ledger falls back to an empty chain and ErrCorruptChain is returned;
// the next Append starts a fresh chain. If the store cannot be read at all
// the error wraps ErrPersistence and appends will keep failing until the
// store is reachable again.
func (l *MemoryLedger) Load(ctx context.Context) error {
	if l.persister == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	loaded, err := l.persister.Load(ctx)
	switch {
	case errors.Is(err, ErrUndecodable):
		l.entries = nil
		l.logger.Error("persisted ledger unreadable, starting from an empty chain", zap.Error(err))
		return l.reset(ctx, fmt.Errorf("%w: %w", ErrCorruptChain, err))
	case err != nil:
		l.entries = nil
		l.logger.Error("ledger load failed", zap.Error(err))
		return fmt.Errorf("%w: load: %w", ErrPersistence, err)
	}

	if bad := l.checkLoaded(loaded); bad > 0 {
		l.entries = nil
		l.logger.Error("persisted ledger rejected, starting from an empty chain",
			zap.Int("entries", len(loaded)),
			zap.Int("invalid", bad),
		)
		return l.reset(ctx, fmt.Errorf("%w: %d of %d entries invalid", ErrCorruptChain, bad, len(loaded)))
	}

	l.entries = loaded
	root := ""
	if len(loaded) > 0 {
		root = loaded[len(loaded)-1].Digest
	}
	l.logger.Info("ledger loaded",
		zap.Int("entries", len(loaded)),
		zap.String("root", root),
	)
	return nil
}

// reset archives the stored chain after a rejected load. cause is returned
// unchanged when the archive succeeds.
func (l *MemoryLedger) reset(ctx context.Context, cause error) error {
	if err := l.persister.Reset(ctx); err != nil {
		l.logger.Error("archive rejected ledger", zap.Error(err))
		return errors.Join(cause, fmt.Errorf("%w: reset: %w", ErrPersistence, err))
	}
	return cause
}

// checkLoaded logs every entry that fails its own digest, its index or its
// back-link, and returns how many did.
func (l *MemoryLedger) checkLoaded(entries []Entry) int {
	bad := 0
	for i := range entries {
		e := &entries[i]
		if e.Index != i {
			l.logger.Error("ledger entry out of sequence",
				zap.Int("position", i),
				zap.Int("idx", e.Index),
			)
			bad++
			continue
		}
		if want := l.digester.Digest(e); e.Digest != want {
			l.logger.Error("ledger entry digest mismatch",
				zap.Int("idx", e.Index),
				zap.String("stored", e.Digest),
				zap.String("recomputed", want),
			)
			bad++
			continue
		}
		wantPrev := GenesisPrev
		if i > 0 {
			wantPrev = entries[i-1].Digest
		}
		if e.PrevDigest != wantPrev {
			l.logger.Error("ledger entry link broken",
				zap.Int("idx", e.Index),
				zap.String("prev_digest", e.PrevDigest),
				zap.String("want", wantPrev),
			)
			bad++
		}
	}
	return bad
}

// Save writes the full chain through the persister.
func (l *MemoryLedger) Save(ctx context.Context) error {
	if l.persister == nil {
		return nil
	}

	// Held for the whole write so that no append lands between snapshot and save.
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := l.persister.Save(ctx, l.entries); err != nil {
		return fmt.Errorf("%w: save: %w", ErrPersistence, err)
	}
	return nil
}
