package airtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/auripay/auripay-backend/internal/apperr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/airtime" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Error("missing or wrong basic auth")
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if body["phone_number"] != "254712345678" || body["amount"] != "10" {
			t.Errorf("payload = %v", body)
		}
		_ = json.NewEncoder(w).Encode(Receipt{StatusCode: 200, Description: "Success", RequestID: "req-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", srv.Client(), discardLogger())
	rec, err := c.Dispatch(context.Background(), "254712345678", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.RequestID != "req-42" {
		t.Fatalf("request id = %q", rec.RequestID)
	}
}

func TestDispatchRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", srv.Client(), discardLogger())
	_, err := c.Dispatch(context.Background(), "254712345678", decimal.NewFromInt(10))
	var derr *apperr.DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DispatchError, got %v", err)
	}
	if derr.Recipient != "254712345678" {
		t.Fatalf("recipient = %q", derr.Recipient)
	}
}

// The balance lookup walks the legacy endpoint chain until one answers.
func TestAccountDetailsFallbackChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/account-details" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"account_balance": "1250.50"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", srv.Client(), discardLogger())
	det := c.AccountDetailsWithFallback(context.Background())
	if !det.Known {
		t.Fatal("expected a known balance from the legacy endpoint")
	}
	if !det.Balance.Equal(decimal.RequireFromString("1250.50")) {
		t.Errorf("balance = %s", det.Balance)
	}
	if det.Currency != "KES" {
		t.Errorf("currency = %q, want KES default", det.Currency)
	}
}

// When no endpoint answers, the dashboard gets the unknown sentinel, never
// an error.
func TestAccountDetailsUnknownSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", srv.Client(), discardLogger())
	det := c.AccountDetailsWithFallback(context.Background())
	if det.Known {
		t.Fatal("expected unknown sentinel")
	}
	if !det.Balance.IsZero() || det.Currency != "KES" {
		t.Errorf("sentinel = %+v", det)
	}
}
