// Package upload ties the content store and the ledger together: it
// validates an uploaded file, stores its bytes and records the filename/CID
// binding in the ledger.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/jmerrifield20/filechain/internal/ledger"
	"go.uber.org/zap"
)

var (
	// ErrInvalidFilename is returned when a filename is empty or unsafe after sanitising.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrFileTypeNotAllowed is returned when the extension is not on the allow-list.
	ErrFileTypeNotAllowed = errors.New("file type not allowed")

	// ErrFileTooLarge is returned when the upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned for zero-length uploads.
	ErrEmptyFile = errors.New("file is empty")
)

// EventLedgerAppended is the event type published after a successful upload.
const EventLedgerAppended = "ledger.appended"

// DefaultMaxBytes is the upload size limit when none is configured (16 MiB).
const DefaultMaxBytes int64 = 16 << 20

// Config holds upload policy.
type Config struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// EventDispatchFunc is an optional callback for publishing ledger events.
type EventDispatchFunc func(ctx context.Context, eventType string, payload map[string]string)

// MetricsRecordFunc is an optional callback for recording upload outcomes.
// result is "success" or a short failure reason.
type MetricsRecordFunc func(result string)

// Service contains the upload workflow.
type Service struct {
	store     contentstore.Store
	ledger    ledger.Ledger
	maxBytes  int64
	allowed   map[string]bool
	onMetrics MetricsRecordFunc
	onEvent   EventDispatchFunc
	logger    *zap.Logger
}

// NewService creates a Service. Zero-valued Config fields select the defaults.
func NewService(store contentstore.Store, l ledger.Ledger, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Service{
		store:    store,
		ledger:   l,
		maxBytes: cfg.MaxBytes,
		allowed:  allowed,
		logger:   logger,
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (s *Service) SetMetricsRecord(fn MetricsRecordFunc) {
	s.onMetrics = fn
}

// SetEventDispatch configures the callback invoked after each recorded upload.
func (s *Service) SetEventDispatch(fn EventDispatchFunc) {
	s.onEvent = fn
}

// MaxBytes returns the configured upload size limit.
func (s *Service) MaxBytes() int64 { return s.maxBytes }

// AllowedExtensions returns the accepted extensions.
func (s *Service) AllowedExtensions() []string {
	out := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		out = append(out, ext)
	}
	return out
}

// CheckFilename sanitises name and checks it against the extension
// allow-list, returning the name that will be recorded.
func (s *Service) CheckFilename(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	clean := SanitizeFilename(name)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if !s.allowed[extension(clean)] {
		return "", fmt.Errorf("%w: %q", ErrFileTypeNotAllowed, clean)
	}
	return clean, nil
}

// Upload validates the file, stores data and appends a ledger entry binding
// the sanitised filename to the returned CID. The store call happens before
// and outside the ledger's append.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*ledger.Entry, error) {
	name, err := s.CheckFilename(filename)
	if err != nil {
		s.logger.Warn("upload rejected", zap.String("filename", filename), zap.Error(err))
		s.record(failureReason(err))
		return nil, err
	}
	if len(data) == 0 {
		s.record("empty")
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if int64(len(data)) > s.maxBytes {
		s.record("too_large")
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(data), s.maxBytes)
	}

	cid, err := s.store.Put(ctx, data)
	if err != nil {
		s.logger.Error("content store put failed", zap.String("filename", name), zap.Error(err))
		s.record("store_error")
		return nil, fmt.Errorf("store %s: %w", name, err)
	}
	s.logger.Info("file stored", zap.String("filename", name), zap.String("cid", cid), zap.Int("bytes", len(data)))

	entry, err := s.ledger.Append(ctx, name, cid)
	if err != nil {
		s.logger.Error("ledger append failed", zap.String("filename", name), zap.String("cid", cid), zap.Error(err))
		s.record("ledger_error")
		return nil, fmt.Errorf("record %s: %w", name, err)
	}

	s.logger.Info("ledger entry added",
		zap.Int("idx", entry.Index),
		zap.String("filename", name),
		zap.String("cid", cid),
		zap.String("digest", entry.Digest),
	)
	s.record("success")
	if s.onEvent != nil {
		s.onEvent(ctx, EventLedgerAppended, map[string]string{
			"sequence_index": strconv.Itoa(entry.Index),
			"label":          entry.Label,
			"content_id":     entry.ContentID,
			"digest":         entry.Digest,
		})
	}
	return entry, nil
}

// Fetch returns the stored bytes for cid.
func (s *Service) Fetch(ctx context.Context, cid string) ([]byte, error) {
	return s.store.Get(ctx, cid)
}

// Entries returns the ledger snapshot.
func (s *Service) Entries(ctx context.Context) ([]ledger.Entry, error) {
	return s.ledger.Entries(ctx)
}

// Verify checks the ledger's integrity.
func (s *Service) Verify(ctx context.Context) (bool, error) {
	return s.ledger.Verify(ctx)
}

// Root returns the digest of the ledger tip.
func (s *Service) Root(ctx context.Context) (string, error) {
	return s.ledger.Root(ctx)
}

// Ledger exposes the underlying ledger for read-only endpoints.
func (s *Service) Ledger() ledger.Ledger { return s.ledger }

func (s *Service) record(result string) {
	if s.onMetrics != nil {
		s.onMetrics(result)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrFileTypeNotAllowed):
		return "type_not_allowed"
	default:
		return "invalid_filename"
	}
}
