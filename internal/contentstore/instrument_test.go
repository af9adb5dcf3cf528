package contentstore

import (
	"context"
	"fmt"
	"testing"
)

func TestInstrument_records(t *testing.T) {
	var got []string
	s := Instrument(newCounting(), func(op, result string) {
		got = append(got, op+":"+result)
	})

	id, err := s.Put(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Get(context.Background(), id); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing cid")
	}

	want := []string{"put:success", "get:success", "get:not_found"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{fmt.Errorf("wrap: %w", ErrTransient), "transient"},
		{ErrPermanentAuth, "auth"},
		{ErrUnavailable, "unavailable"},
		{ErrEmptyContent, "empty"},
		{fmt.Errorf("boom"), "error"},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
