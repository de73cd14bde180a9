package daraja

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/apperr"
)

func tokenServer(t *testing.T, tokens *int32, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("missing basic auth on token fetch")
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		n := atomic.AddInt32(tokens, 1)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-" + string(rune('0'+n))})
	}))
}

func TestTokenSourceCaches(t *testing.T) {
	var fetches int32
	srv := tokenServer(t, &fetches, http.StatusOK)
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), srv.URL, "key", "secret", time.Hour)
	ctx := context.Background()

	first, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("expected cached token on second call")
	}
	if n := atomic.LoadInt32(&fetches); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}

	ts.Invalidate()
	third, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third == first {
		t.Fatal("expected fresh token after invalidate")
	}
}

func TestTokenSourceAuthError(t *testing.T) {
	var fetches int32
	srv := tokenServer(t, &fetches, http.StatusBadRequest)
	defer srv.Close()

	ts := NewTokenSource(srv.Client(), srv.URL, "bad", "creds", time.Hour)
	_, err := ts.Token(context.Background())
	var aerr *apperr.AuthError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

// The client must refresh the token and retry exactly once on a 401.
func TestClientRetriesOnceOn401(t *testing.T) {
	var calls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(STKQueryResult{ResultCode: "0", ResultDesc: "ok"})
	}))
	defer api.Close()

	ts := NewTokenSource(api.Client(), api.URL, "key", "secret", time.Hour)
	c := NewClient(Config{BaseURL: api.URL, ShortCode: "174379", Passkey: "pk"}, ts, api.Client(), slog.Default())

	res, err := c.STKQuery(context.Background(), "ws_CO_test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResultCode != "0" {
		t.Fatalf("result code = %q", res.ResultCode)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected exactly 2 query attempts, got %d", n)
	}
}

func TestClientGatewayError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorMessage": "upstream unavailable"})
	}))
	defer api.Close()

	ts := NewTokenSource(api.Client(), api.URL, "key", "secret", time.Hour)
	c := NewClient(Config{BaseURL: api.URL}, ts, api.Client(), slog.Default())

	_, err := c.STKPush(context.Background(), "254712345678", decimal.NewFromInt(10))
	var gerr *apperr.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gerr.Desc != "upstream unavailable" {
		t.Fatalf("expected gateway description surfaced, got %q", gerr.Desc)
	}
}
