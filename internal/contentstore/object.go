package contentstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"go.uber.org/zap"
)

// ObjectStore implements Store on top of an afs location. The base URL picks
// the backend: file:// for local disk, mem:// for tests, s3:// or gs:// when
// the matching afsc driver is linked in.
//
// Objects are stored at {baseURL}/{last two chars of cid}/{cid}; the suffix
// is used as the shard because every CIDv1 shares the same prefix.
type ObjectStore struct {
	fs      afs.Service
	baseURL string
	logger  *zap.Logger
}

// Compile-time interface check.
var _ Store = (*ObjectStore)(nil)

// NewObjectStore creates an ObjectStore rooted at baseURL.
func NewObjectStore(baseURL string, logger *zap.Logger) (*ObjectStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty base url", ErrUnavailable)
	}
	return &ObjectStore{
		fs:      afs.New(),
		baseURL: baseURL,
		logger:  logger,
	}, nil
}

func (s *ObjectStore) objectURL(id string) string {
	return url.Join(s.baseURL, id[len(id)-2:]+"/"+id)
}

// Put implements Store.
func (s *ObjectStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	id, err := ComputeCID(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	URL := s.objectURL(id)
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", ErrTransient, id, err)
	}
	if ok {
		s.logger.Debug("object already stored", zap.String("cid", id))
		return id, nil
	}
	if err := s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: upload %s: %w", ErrTransient, id, err)
	}

	s.logger.Debug("object stored", zap.String("cid", id), zap.Int("bytes", len(data)))
	return id, nil
}

// Get implements Store. The returned bytes are re-hashed and must match cid.
func (s *ObjectStore) Get(ctx context.Context, id string) ([]byte, error) {
	if !ValidCID(id) {
		return nil, fmt.Errorf("%w: invalid cid %q", ErrNotFound, id)
	}

	URL := s.objectURL(id)
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrTransient, id, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %w", ErrTransient, id, err)
	}

	got, err := ComputeCID(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if got != id {
		s.logger.Error("stored object does not match its cid",
			zap.String("cid", id),
			zap.String("computed", got),
		)
		return nil, fmt.Errorf("%w: content of %s hashes to %s", ErrUnavailable, id, got)
	}
	return data, nil
}
