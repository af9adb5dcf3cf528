package contentstore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ctx = context.Background()

func memStore(t *testing.T) *contentstore.ObjectStore {
	t.Helper()
	base := fmt.Sprintf("mem://localhost/%s-%d", t.Name(), time.Now().UnixNano())
	s, err := contentstore.NewObjectStore(base, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestComputeCID_stable(t *testing.T) {
	a, err := contentstore.ComputeCID([]byte("hello world"))
	require.NoError(t, err)
	b, err := contentstore.ComputeCID([]byte("hello world"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, len(a) > 2 && a[:4] == "bafk", "raw CIDv1 in base32 starts with bafk, got %q", a)
	assert.True(t, contentstore.ValidCID(a))

	c, err := contentstore.ComputeCID([]byte("hello world!"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestValidCID(t *testing.T) {
	assert.False(t, contentstore.ValidCID(""))
	assert.False(t, contentstore.ValidCID("../../etc/passwd"))
	assert.True(t, contentstore.ValidCID("QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"))
}

func TestObjectStore_PutGet(t *testing.T) {
	s := memStore(t)

	id, err := s.Put(ctx, []byte("report body"))
	require.NoError(t, err)

	want, _ := contentstore.ComputeCID([]byte("report body"))
	assert.Equal(t, want, id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("report body"), got)
}

func TestObjectStore_PutIdempotent(t *testing.T) {
	s := memStore(t)
	a, err := s.Put(ctx, []byte("same"))
	require.NoError(t, err)
	b, err := s.Put(ctx, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestObjectStore_PutEmpty(t *testing.T) {
	s := memStore(t)
	_, err := s.Put(ctx, nil)
	assert.ErrorIs(t, err, contentstore.ErrEmptyContent)
}

func TestObjectStore_GetMissing(t *testing.T) {
	s := memStore(t)
	id, _ := contentstore.ComputeCID([]byte("never stored"))
	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, contentstore.ErrNotFound)
}

func TestObjectStore_GetInvalidCID(t *testing.T) {
	s := memStore(t)
	_, err := s.Get(ctx, "../../secret")
	assert.ErrorIs(t, err, contentstore.ErrNotFound)
}
