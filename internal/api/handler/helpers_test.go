package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/filechain/internal/api/handler"
	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/jmerrifield20/filechain/internal/ledger"
	"github.com/jmerrifield20/filechain/internal/upload"
	"go.uber.org/zap"
)

// stubStore is an in-memory contentstore.Store with an injectable error.
type stubStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newStubStore() *stubStore { return &stubStore{objects: make(map[string][]byte)} }

func (s *stubStore) Put(_ context.Context, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	id, err := contentstore.ComputeCID(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[id] = data
	s.mu.Unlock()
	return id, nil
}

func (s *stubStore) Get(_ context.Context, id string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[id]
	if !ok {
		return nil, contentstore.ErrNotFound
	}
	return data, nil
}

// brokenLedger reports a failed verification.
type brokenLedger struct {
	*ledger.MemoryLedger
}

func (brokenLedger) Verify(context.Context) (bool, error) { return false, nil }

type testEnv struct {
	router *gin.Engine
	store  *stubStore
	ledger ledger.Ledger
}

func setupRouter(t *testing.T, l ledger.Ledger, gateway func(string) string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if l == nil {
		l = ledger.New()
	}
	store := newStubStore()
	svc := upload.NewService(store, l, upload.Config{MaxBytes: 1024}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := handler.NewRouter(ctx, handler.RouterConfig{
		Service:     svc,
		Gateway:     gateway,
		CORSOrigins: []string{"*"},
		Logger:      zap.NewNop(),
	})
	return &testEnv{router: router, store: store, ledger: l}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
