package ledger

import (
	"errors"
	"testing"
)

func TestContinuesTail(t *testing.T) {
	chain, err := honestChain(t).Entries(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	// chain holds genesis plus three uploads.

	tests := []struct {
		name       string
		next       int
		tailDigest string
		entries    []Entry
		wantErr    bool
	}{
		{"empty store takes genesis batch", 0, GenesisPrev, chain[:2], false},
		{"extends stored tail", 2, chain[1].Digest, chain[2:], false},
		{"stale index", 3, chain[2].Digest, chain[2:3], true},
		{"fork off an older entry", 3, chain[2].Digest, []Entry{{Index: 3, PrevDigest: chain[1].Digest}}, true},
		{"genesis onto a non-empty store", 2, chain[1].Digest, chain[:1], true},
		{"gap inside batch", 1, chain[0].Digest, []Entry{chain[1], chain[3]}, true},
		{"broken link inside batch", 1, chain[0].Digest, []Entry{chain[1], {Index: 2, PrevDigest: "beef"}}, true},
		{"empty batch", 4, chain[3].Digest, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := continuesTail(tc.next, tc.tailDigest, tc.entries)
			if tc.wantErr {
				if !errors.Is(err, ErrOutOfSequence) {
					t.Fatalf("got %v, want ErrOutOfSequence", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
