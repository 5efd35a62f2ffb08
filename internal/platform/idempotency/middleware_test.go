package idempotency

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	store := NewMemoryStore()
	var handlerCalls int32
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&handlerCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"paymentIntentId":"pi_1"}`)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/payment-intent", strings.NewReader(`{"cart":[]}`))
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	if first.Code != http.StatusCreated {
		t.Fatalf("first call: status %d", first.Code)
	}
	if first.Header().Get(replayHeaderName) != "" {
		t.Fatal("first call flagged as replay")
	}

	second := do()
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: status %d", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("replay header missing")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body differs: %q vs %q", second.Body.String(), first.Body.String())
	}
	if atomic.LoadInt32(&handlerCalls) != 1 {
		t.Fatalf("handler called %d times, want 1", handlerCalls)
	}
}

func TestMiddlewareRejectsReusedKeyWithDifferentBody(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader(`{"a":1}`))
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first call: status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader(`{"a":2}`))
	req.Header.Set("Idempotency-Key", "key-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict for different body under same key, got %d", rec.Code)
	}
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	store := NewMemoryStore()
	var calls int
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: status %d", i, rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("keyless requests must not be deduplicated: %d calls", calls)
	}
}

func TestMiddlewareRequiredRejectsMissingKey(t *testing.T) {
	handler := Middleware(NewMemoryStore(), WithRequired())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", rec.Code)
	}
}

func TestMemoryStoreExpiryAllowsReuse(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	res, err := store.Reserve(context.Background(), "key-1", "fp-1", now, time.Hour)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("first reserve: state=%v err=%v", res.State, err)
	}

	// Same key, different fingerprint, after expiry: fresh reservation.
	res, err = store.Reserve(context.Background(), "key-1", "fp-2", now.Add(2*time.Hour), time.Hour)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("post-expiry reserve: state=%v err=%v", res.State, err)
	}

	removed, err := store.CleanupExpired(context.Background(), now.Add(4*time.Hour), 0)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired record removed, got %d", removed)
	}
}
