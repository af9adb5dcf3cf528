package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmerrifield20/filechain/internal/ledger"
)

// withVerifyFlags sets the verify flag globals for one test.
func withVerifyFlags(t *testing.T, file, bolt, scheme string) {
	t.Helper()
	prevFile, prevBolt, prevScheme, prevHash := verifyFile, verifyBolt, verifyScheme, verifyHash
	verifyFile, verifyBolt, verifyScheme, verifyHash = file, bolt, scheme, string(ledger.HashSHA256)
	t.Cleanup(func() {
		verifyFile, verifyBolt, verifyScheme, verifyHash = prevFile, prevBolt, prevScheme, prevHash
	})
}

// writeJSONChain persists a three-upload chain built with scheme and returns
// the file path.
func writeJSONChain(t *testing.T, scheme ledger.Scheme) string {
	t.Helper()
	d, err := ledger.NewDigester(scheme, ledger.HashSHA256)
	if err != nil {
		t.Fatal(err)
	}
	store, err := ledger.NewJSONFileStore(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatal(err)
	}
	l := ledger.New(ledger.WithPersister(store), ledger.WithDigester(d))
	for _, name := range []string{"report.pdf", "photo.png", "notes.txt"} {
		if _, err := l.Append(context.Background(), name, "bafy-"+name); err != nil {
			t.Fatal(err)
		}
	}
	return store.Path()
}

func tamperFile(t *testing.T, path, old, replacement string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), old) {
		t.Fatalf("%q not found in %s", old, path)
	}
	tampered := strings.Replace(string(data), old, replacement, 1)
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestRunVerify_honestFile(t *testing.T) {
	path := writeJSONChain(t, ledger.SchemeLengthPrefixed)
	withVerifyFlags(t, path, "", string(ledger.SchemeLengthPrefixed))

	if err := runVerify(verifyCmd, nil); err != nil {
		t.Fatalf("expected honest chain to verify, got %v", err)
	}
}

func TestRunVerify_tamperedFile(t *testing.T) {
	path := writeJSONChain(t, ledger.SchemeLengthPrefixed)
	tamperFile(t, path, "photo.png", "photo.exe")
	withVerifyFlags(t, path, "", string(ledger.SchemeLengthPrefixed))

	if err := runVerify(verifyCmd, nil); !errors.Is(err, errChainInvalid) {
		t.Fatalf("expected errChainInvalid, got %v", err)
	}
}

func TestRunVerify_concatScheme(t *testing.T) {
	path := writeJSONChain(t, ledger.SchemeConcat)

	withVerifyFlags(t, path, "", string(ledger.SchemeConcat))
	if err := runVerify(verifyCmd, nil); err != nil {
		t.Fatalf("expected concat chain to verify with --scheme concat, got %v", err)
	}

	withVerifyFlags(t, path, "", string(ledger.SchemeLengthPrefixed))
	if err := runVerify(verifyCmd, nil); !errors.Is(err, errChainInvalid) {
		t.Fatalf("expected concat chain to fail under the default scheme, got %v", err)
	}
}

func TestRunVerify_unknownScheme(t *testing.T) {
	path := writeJSONChain(t, ledger.SchemeLengthPrefixed)
	withVerifyFlags(t, path, "", "xor")

	if err := runVerify(verifyCmd, nil); !errors.Is(err, ledger.ErrUnknownScheme) {
		t.Fatalf("expected ErrUnknownScheme, got %v", err)
	}
}

func TestRunVerify_bolt(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.OpenBoltStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	l := ledger.New(ledger.WithPersister(store))
	if _, err := l.Append(context.Background(), "report.pdf", "bafy111"); err != nil {
		t.Fatal(err)
	}
	entries, _ := l.Entries(context.Background())
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	withVerifyFlags(t, "", dbPath, string(ledger.SchemeLengthPrefixed))
	if err := runVerify(verifyCmd, nil); err != nil {
		t.Fatalf("expected honest bolt chain to verify, got %v", err)
	}

	store, err = ledger.OpenBoltStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	entries[1].ContentID = "bafyXXX"
	if err := store.Save(context.Background(), entries); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	if err := runVerify(verifyCmd, nil); !errors.Is(err, errChainInvalid) {
		t.Fatalf("expected errChainInvalid, got %v", err)
	}
}

func TestRunVerify_remote(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ledger/verify" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"status":"valid"}`))
			return
		}
		w.Write([]byte(`{"status":"invalid","message":"chain broken"}`))
	}))
	defer srv.Close()

	prevServer := serverURL
	serverURL = srv.URL
	t.Cleanup(func() { serverURL = prevServer })
	withVerifyFlags(t, "", "", string(ledger.SchemeLengthPrefixed))

	if err := runVerify(verifyCmd, nil); err != nil {
		t.Fatalf("expected valid remote chain, got %v", err)
	}

	status = http.StatusConflict
	if err := runVerify(verifyCmd, nil); !errors.Is(err, errChainInvalid) {
		t.Fatalf("expected errChainInvalid, got %v", err)
	}
}
