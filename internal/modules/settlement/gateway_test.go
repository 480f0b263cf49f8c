package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rideon/internal/config"
)

func testGateway(attempts int) *Gateway {
	return NewGateway(config.PaymentConfig{
		Attempts:   attempts,
		RetryDelay: time.Millisecond,
	})
}

func expect(n int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) { return n, nil }
}

func TestPaySucceedsFirstTry(t *testing.T) {
	var posts atomic.Int32
	var key atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		key.Store(r.Header.Get("Idempotency-Key"))
		var body paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount != 1500 {
			t.Errorf("bad body: %+v err=%v", body, err)
		}
		posts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := testGateway(5).Pay(context.Background(), srv.URL, "tok-1", 1500, expect(1)); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if posts.Load() != 1 {
		t.Fatalf("posts = %d, want 1", posts.Load())
	}
	if k, _ := key.Load().(string); k == "" {
		t.Fatal("missing Idempotency-Key header")
	}
}

func TestPayRetriesUntilSuccessWithStableIdempotencyKey(t *testing.T) {
	var posts atomic.Int32
	keys := make(map[string]bool)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			keys[r.Header.Get("Idempotency-Key")] = true
			if posts.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	if err := testGateway(5).Pay(context.Background(), srv.URL, "tok-1", 700, expect(1)); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if posts.Load() != 3 {
		t.Fatalf("posts = %d, want 3", posts.Load())
	}
	if len(keys) != 1 {
		t.Fatalf("idempotency key changed across retries: %v", keys)
	}
}

func TestPayReconcilesAmbiguousResponse(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posts.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		case http.MethodGet:
			json.NewEncoder(w).Encode([]paymentEntry{{Amount: 700, Status: "completed"}})
		}
	}))
	defer srv.Close()

	// The POST response was lost but the gateway's ledger matches ours:
	// the charge landed, no further attempts.
	if err := testGateway(5).Pay(context.Background(), srv.URL, "tok-1", 700, expect(1)); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if posts.Load() != 1 {
		t.Fatalf("posts = %d, want 1", posts.Load())
	}
}

func TestPayLedgerMismatchIsUnrecoverable(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posts.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		case http.MethodGet:
			json.NewEncoder(w).Encode([]paymentEntry{})
		}
	}))
	defer srv.Close()

	err := testGateway(5).Pay(context.Background(), srv.URL, "tok-1", 700, expect(2))
	if !errors.Is(err, ErrLedgerMismatch) {
		t.Fatalf("err = %v, want ErrLedgerMismatch", err)
	}
	if posts.Load() != 1 {
		t.Fatalf("posts = %d, want 1 (mismatch must not retry)", posts.Load())
	}
}

func TestPayExhaustsRetries(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testGateway(3).Pay(context.Background(), srv.URL, "tok-1", 700, expect(1))
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}
