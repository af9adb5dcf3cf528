package contentstore

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"go.uber.org/zap"
)

// statFailingFS fails every Exists call and counts uploads.
type statFailingFS struct {
	afs.Service
	uploads int
}

func (f *statFailingFS) Exists(context.Context, string, ...storage.Option) (bool, error) {
	return false, errors.New("connection reset")
}

func (f *statFailingFS) Upload(context.Context, string, os.FileMode, io.Reader, ...storage.Option) error {
	f.uploads++
	return nil
}

func TestObjectStore_putStatErrorIsTransient(t *testing.T) {
	fs := &statFailingFS{Service: afs.New()}
	s := &ObjectStore{fs: fs, baseURL: "mem://localhost/stat-error", logger: zap.NewNop()}

	_, err := s.Put(context.Background(), []byte("hello"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if fs.uploads != 0 {
		t.Errorf("expected no upload after a failed stat, got %d", fs.uploads)
	}
}

func TestObjectStore_getStatErrorIsTransient(t *testing.T) {
	fs := &statFailingFS{Service: afs.New()}
	s := &ObjectStore{fs: fs, baseURL: "mem://localhost/stat-error", logger: zap.NewNop()}

	id, err := ComputeCID([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), id); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}
