package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmerrifield20/filechain/internal/ledger"
)

func TestLedgerOverview_empty(t *testing.T) {
	env := setupRouter(t, nil, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if n := int(resp["entries"].(float64)); n != 0 {
		t.Errorf("expected 0 entries before the first upload, got %d", n)
	}
	if resp["root"] != "" {
		t.Errorf("expected empty root, got %v", resp["root"])
	}
}

func TestLedgerOverview_afterAppend(t *testing.T) {
	env := setupRouter(t, nil, nil)
	e, err := env.ledger.Append(context.Background(), "a.txt", "bafkreia")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger", nil))
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if n := int(resp["entries"].(float64)); n != 2 {
		t.Errorf("expected 2 entries (genesis + 1), got %d", n)
	}
	if resp["root"] != e.Digest {
		t.Errorf("root = %v, want %s", resp["root"], e.Digest)
	}
}

func TestLedgerListEntries(t *testing.T) {
	env := setupRouter(t, nil, nil)
	ctx := context.Background()
	env.ledger.Append(ctx, "report.pdf", "cid-a")
	env.ledger.Append(ctx, "photo.png", "cid-b")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entries []ledger.Entry `json:"entries"`
		Count   int            `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 3 || len(resp.Entries) != 3 {
		t.Fatalf("expected 3 entries, got count=%d len=%d", resp.Count, len(resp.Entries))
	}
	if resp.Entries[0].Label != ledger.GenesisLabel {
		t.Errorf("entry 0 label = %q, want genesis", resp.Entries[0].Label)
	}
	if resp.Entries[2].PrevDigest != resp.Entries[1].Digest {
		t.Error("entry 2 does not link to entry 1")
	}
}

func TestLedgerListEntries_emptyIsArray(t *testing.T) {
	env := setupRouter(t, nil, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries", nil))
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if _, ok := resp["entries"].([]any); !ok {
		t.Errorf("expected entries to be a JSON array, got %T", resp["entries"])
	}
}

func TestLedgerVerify_200(t *testing.T) {
	env := setupRouter(t, nil, nil)
	env.ledger.Append(context.Background(), "a.txt", "cid-a")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "valid" {
		t.Errorf("expected status=valid, got %v", resp["status"])
	}
}

func TestLedgerVerify_409(t *testing.T) {
	env := setupRouter(t, brokenLedger{ledger.New()}, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "invalid" {
		t.Errorf("expected status=invalid, got %v", resp["status"])
	}
	if resp["message"] == "" {
		t.Error("expected a message")
	}
}

func TestLedgerGetEntry_200_genesis(t *testing.T) {
	env := setupRouter(t, nil, nil)
	env.ledger.Append(context.Background(), "a.txt", "cid-a")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/0", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var e ledger.Entry
	json.Unmarshal(w.Body.Bytes(), &e)
	if !e.IsGenesis() {
		t.Errorf("expected genesis entry, got %+v", e)
	}
}

func TestLedgerGetEntry_404(t *testing.T) {
	env := setupRouter(t, nil, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/999", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestLedgerGetEntry_400_invalidIdx(t *testing.T) {
	env := setupRouter(t, nil, nil)

	for _, idx := range []string{"abc", "-1"} {
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/ledger/entries/"+idx, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("idx %q: expected 400, got %d", idx, w.Code)
		}
	}
}
