package contentstore

import (
	"context"
	"errors"
)

// RecordFunc receives one observation per store call. op is "put" or "get";
// result is "success" or the name of the failure class.
type RecordFunc func(op, result string)

// InstrumentedStore reports every Put and Get to a RecordFunc.
type InstrumentedStore struct {
	next   Store
	record RecordFunc
}

var _ Store = (*InstrumentedStore)(nil)

// Instrument wraps next so that each call is reported to record.
func Instrument(next Store, record RecordFunc) *InstrumentedStore {
	return &InstrumentedStore{next: next, record: record}
}

// Put stores data through the wrapped store.
func (s *InstrumentedStore) Put(ctx context.Context, data []byte) (string, error) {
	id, err := s.next.Put(ctx, data)
	s.record("put", Classify(err))
	return id, err
}

// Get fetches cid through the wrapped store.
func (s *InstrumentedStore) Get(ctx context.Context, cid string) ([]byte, error) {
	data, err := s.next.Get(ctx, cid)
	s.record("get", Classify(err))
	return data, err
}

// Classify names the failure class of err for logs and metrics.
func Classify(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrPermanentAuth):
		return "auth"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrEmptyContent):
		return "empty"
	default:
		return "error"
	}
}
