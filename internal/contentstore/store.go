// Package contentstore stores raw bytes in content-addressed backends and
// hands back the content identifier (CID) the ledger records.
package contentstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no content exists for the given CID.
	ErrNotFound = errors.New("contentstore: content not found")

	// ErrTransient indicates a failure that may succeed on retry
	// (network errors, rate limiting, 5xx responses).
	ErrTransient = errors.New("contentstore: transient failure")

	// ErrPermanentAuth indicates the backend rejected the credentials.
	ErrPermanentAuth = errors.New("contentstore: authentication rejected")

	// ErrUnavailable indicates the backend cannot serve the request and
	// retrying will not help (bad response, integrity mismatch, misconfiguration).
	ErrUnavailable = errors.New("contentstore: backend unavailable")

	// ErrEmptyContent indicates an attempt to store empty content.
	ErrEmptyContent = errors.New("contentstore: content is empty")
)

// Store is a content-addressed blob store. CIDs are opaque to callers.
type Store interface {
	// Put stores data and returns its CID. Storing the same bytes twice
	// returns the same CID.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the bytes stored under cid.
	Get(ctx context.Context, cid string) ([]byte, error)
}
