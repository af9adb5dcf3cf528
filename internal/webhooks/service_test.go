package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type receiver struct {
	mu     sync.Mutex
	events []Event
	sigOK  []bool
}

func (rc *receiver) handler(secret string, fail *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fail != nil && fail.Add(-1) >= 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var e Event
		json.Unmarshal(body, &e)

		rc.mu.Lock()
		rc.events = append(rc.events, e)
		rc.sigOK = append(rc.sigOK, VerifySignature(body, secret, r.Header.Get(SignatureHeader)))
		rc.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestService(subs []Subscription) *Service {
	s := NewService(subs, zap.NewNop())
	s.delays = []time.Duration{0, time.Millisecond, time.Millisecond}
	return s
}

func TestDispatch_signedDelivery(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler("s3cret", nil))
	defer srv.Close()

	s := newTestService([]Subscription{{URL: srv.URL, Secret: "s3cret"}})
	s.Dispatch(context.Background(), EventLedgerAppended, map[string]string{"idx": "1", "label": "a.txt"})
	s.Wait()

	if len(rc.events) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(rc.events))
	}
	e := rc.events[0]
	if e.Type != EventLedgerAppended || e.Payload["label"] != "a.txt" || e.ID == "" {
		t.Errorf("unexpected event: %+v", e)
	}
	if !rc.sigOK[0] {
		t.Error("signature did not verify")
	}
}

func TestDispatch_filtersByEvent(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler("", nil))
	defer srv.Close()

	s := newTestService([]Subscription{{URL: srv.URL, Events: []string{EventHealthDegraded}}})
	s.Dispatch(context.Background(), EventLedgerAppended, nil)
	s.Dispatch(context.Background(), EventHealthDegraded, map[string]string{"check": "ledger"})
	s.Wait()

	if len(rc.events) != 1 || rc.events[0].Type != EventHealthDegraded {
		t.Errorf("expected only the degraded event, got %+v", rc.events)
	}
}

func TestDispatch_retriesThenSucceeds(t *testing.T) {
	rc := &receiver{}
	var fail atomic.Int32
	fail.Store(2)
	srv := httptest.NewServer(rc.handler("", &fail))
	defer srv.Close()

	var outcomes []bool
	var mu sync.Mutex
	s := newTestService([]Subscription{{URL: srv.URL}})
	s.SetMetricsRecorder(func(ok bool) {
		mu.Lock()
		outcomes = append(outcomes, ok)
		mu.Unlock()
	})

	s.Dispatch(context.Background(), EventLedgerAppended, nil)
	s.Wait()

	if len(rc.events) != 1 {
		t.Fatalf("expected delivery on third attempt, got %d", len(rc.events))
	}
	if len(outcomes) != 3 || outcomes[0] || outcomes[1] || !outcomes[2] {
		t.Errorf("unexpected outcomes: %v", outcomes)
	}
}

func TestDispatch_survivesCancelledContext(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler("", nil))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestService([]Subscription{{URL: srv.URL}})
	s.Dispatch(ctx, EventLedgerAppended, nil)
	s.Wait()

	if len(rc.events) != 1 {
		t.Errorf("expected delivery despite cancelled request context, got %d", len(rc.events))
	}
}

func TestSubscription_Wants(t *testing.T) {
	all := Subscription{}
	if !all.Wants(EventLedgerAppended) {
		t.Error("empty event list should match everything")
	}
	star := Subscription{Events: []string{"*"}}
	if !star.Wants(EventHealthDegraded) {
		t.Error("* should match everything")
	}
	one := Subscription{Events: []string{EventHealthDegraded}}
	if one.Wants(EventLedgerAppended) {
		t.Error("should not match other events")
	}
}

func TestVerifySignature_rejectsTampering(t *testing.T) {
	body := []byte(`{"type":"ledger.appended"}`)
	sig := signPayload(body, "k")
	if !VerifySignature(body, "k", sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifySignature([]byte(`{"type":"ledger.appendeD"}`), "k", sig) {
		t.Error("tampered body accepted")
	}
	if VerifySignature(body, "other", sig) {
		t.Error("wrong secret accepted")
	}
}

func TestClose_dropsLateEvents(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler("", nil))
	defer srv.Close()

	s := newTestService([]Subscription{{URL: srv.URL}})
	s.Dispatch(context.Background(), EventLedgerAppended, map[string]string{"sequence_index": "1"})
	s.Close()

	s.Dispatch(context.Background(), EventHealthDegraded, map[string]string{"check": "ledger"})
	s.Wait()

	if len(rc.events) != 1 || rc.events[0].Type != EventLedgerAppended {
		t.Fatalf("expected only the event sent before Close, got %+v", rc.events)
	}
}

func TestClose_concurrentDispatch(t *testing.T) {
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := newTestService([]Subscription{{URL: srv.URL}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.Dispatch(context.Background(), EventLedgerAppended, nil)
			}
		}()
	}
	s.Close()
	wg.Wait()
	before := delivered.Load()

	// Nothing dispatched after Close may start a delivery.
	s.Dispatch(context.Background(), EventLedgerAppended, nil)
	s.Wait()
	if got := delivered.Load(); got != before {
		t.Errorf("delivery after Close: %d then %d", before, got)
	}
}
