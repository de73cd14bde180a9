package daraja

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/auripay/auripay-backend/internal/apperr"
)

// TokenSource exchanges the consumer key/secret for a bearer token and
// caches it slightly under the gateway's real expiry. Correctness does not
// depend on the cache; it only avoids rate-limiting on the token endpoint.
type TokenSource struct {
	client  *http.Client
	baseURL string
	key     string
	secret  string
	ttl     time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenSource(client *http.Client, baseURL, key, secret string, ttl time.Duration) *TokenSource {
	if ttl <= 0 {
		ttl = 50 * time.Minute // gateway tokens nominally last 3599s
	}
	return &TokenSource{client: client, baseURL: baseURL, key: key, secret: secret, ttl: ttl}
}

func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.token != "" && time.Now().Before(ts.expires) {
		tok := ts.token
		ts.mu.Unlock()
		return tok, nil
	}
	ts.mu.Unlock()

	// fetch outside the lock; a concurrent duplicate fetch is harmless
	tok, err := ts.fetch(ctx)
	if err != nil {
		return "", err
	}

	ts.mu.Lock()
	ts.token = tok
	ts.expires = time.Now().Add(ts.ttl)
	ts.mu.Unlock()
	return tok, nil
}

// Invalidate drops the cached token. Called once when a downstream call
// comes back 401 so the retry fetches a fresh credential.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.mu.Unlock()
}

func (ts *TokenSource) fetch(ctx context.Context) (string, error) {
	url := ts.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &apperr.AuthError{Op: "token request", Err: err}
	}
	req.SetBasicAuth(ts.key, ts.secret)

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", &apperr.TransientNetworkError{Op: "token fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// bad credentials are not retryable
		return "", &apperr.AuthError{Op: "token fetch", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &apperr.AuthError{Op: "token decode", Err: err}
	}
	if body.AccessToken == "" {
		return "", &apperr.AuthError{Op: "token fetch", Err: fmt.Errorf("empty access_token")}
	}
	return body.AccessToken, nil
}
