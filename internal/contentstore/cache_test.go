package contentstore

import (
	"context"
	"testing"
	"time"
)

type countingStore struct {
	data map[string][]byte
	gets int
}

func (s *countingStore) Put(_ context.Context, data []byte) (string, error) {
	id, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	s.data[id] = data
	return id, nil
}

func (s *countingStore) Get(_ context.Context, id string) ([]byte, error) {
	s.gets++
	d, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func newCounting() *countingStore {
	return &countingStore{data: make(map[string][]byte)}
}

func TestCache_Hit(t *testing.T) {
	next := newCounting()
	c := NewCachedStore(next, time.Minute, 1<<20)

	id, err := c.Put(context.Background(), []byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}
	if next.gets != 1 {
		t.Errorf("backend gets: got %d, want 1", next.gets)
	}
}

func TestCache_Miss(t *testing.T) {
	c := NewCachedStore(newCounting(), time.Minute, 1<<20)
	if _, err := c.Get(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for nonexistent key")
	}
	if c.Len() != 0 {
		t.Errorf("failed gets must not be cached, len=%d", c.Len())
	}
}

func TestCache_Expiry(t *testing.T) {
	now := time.Now()
	next := newCounting()
	c := NewCachedStore(next, time.Minute, 1<<20)
	c.now = func() time.Time { return now }

	id, _ := c.Put(context.Background(), []byte("abc"))
	_, _ = c.Get(context.Background(), id)

	now = now.Add(2 * time.Minute)
	_, _ = c.Get(context.Background(), id)
	if next.gets != 2 {
		t.Errorf("backend gets after expiry: got %d, want 2", next.gets)
	}
}

func TestCache_Evict(t *testing.T) {
	now := time.Now()
	c := NewCachedStore(newCounting(), 10*time.Millisecond, 1<<20)
	c.now = func() time.Time { return now }

	c.set("k1", []byte("1"))
	c.set("k2", []byte("2"))
	c.set("k3", []byte("3"))
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}

	now = now.Add(time.Second)
	if n := c.Evict(); n != 3 {
		t.Errorf("Evict() removed %d entries, want 3", n)
	}
	if c.Len() != 0 {
		t.Errorf("cache has %d entries after eviction, want 0", c.Len())
	}
}

func TestCache_SizeBound(t *testing.T) {
	c := NewCachedStore(newCounting(), time.Minute, 4)

	c.set("big", []byte("12345"))
	if c.Len() != 0 {
		t.Error("objects larger than the bound must not be cached")
	}

	c.set("a", []byte("12"))
	c.set("b", []byte("34"))
	c.set("c", []byte("5"))
	if c.Len() != 2 {
		t.Errorf("cache should stop at its byte bound, len=%d", c.Len())
	}
}
