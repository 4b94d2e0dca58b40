package client

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/backfarm/poolbot/backpack/types"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:       baseURL,
		APIKey:        "test-key",
		APISecret:     testSeed,
		RetryAttempts: 1,
		RetryWait:     time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// Signed requests must carry the four auth headers, and the signature must
// verify against the canonical string rebuilt from those headers.
func TestSignedRequestHeaders(t *testing.T) {
	var captured http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	if _, err := c.Balances(context.Background()); err != nil {
		t.Fatalf("Balances: %v", err)
	}

	if got := captured.Get("X-API-Key"); got != "test-key" {
		t.Errorf("X-API-Key = %q, want %q", got, "test-key")
	}
	if got := captured.Get("X-Window"); got != "5000" {
		t.Errorf("X-Window = %q, want %q", got, "5000")
	}

	ts, err := strconv.ParseInt(captured.Get("X-Timestamp"), 10, 64)
	if err != nil {
		t.Fatalf("X-Timestamp %q is not an integer: %v", captured.Get("X-Timestamp"), err)
	}
	if drift := time.Since(time.UnixMilli(ts)); drift < 0 || drift > time.Minute {
		t.Errorf("X-Timestamp drift %v, want recent", drift)
	}

	sig, err := base64.StdEncoding.DecodeString(captured.Get("X-Signature"))
	if err != nil {
		t.Fatalf("X-Signature is not base64: %v", err)
	}
	seed, _ := base64.StdEncoding.DecodeString(testSeed)
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	canonical := fmt.Sprintf("instruction=balanceQuery&timestamp=%d&window=5000", ts)
	if !ed25519.Verify(pub, []byte(canonical), sig) {
		t.Errorf("signature does not verify against %q", canonical)
	}
}

// Public endpoints must never see auth headers, and must pass their
// parameters as a query string.
func TestPublicRequestUnsigned(t *testing.T) {
	var captured *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(r.Context())
		fmt.Fprint(w, `{"bids":[],"asks":[],"lastUpdateId":"1","timestamp":2}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	if _, err := c.OrderBookDepth(context.Background(), "SOL_USDC"); err != nil {
		t.Fatalf("OrderBookDepth: %v", err)
	}

	for _, header := range []string{"X-API-Key", "X-Signature", "X-Timestamp", "X-Window"} {
		if got := captured.Header.Get(header); got != "" {
			t.Errorf("public request carries %s = %q", header, got)
		}
	}
	if got := captured.URL.Query().Get("symbol"); got != "SOL_USDC" {
		t.Errorf("symbol query param = %q, want SOL_USDC", got)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   types.ErrorKind
	}{
		{"structured api error", 400, `{"code":"INVALID_ORDER","message":"bad quantity"}`, types.KindAPIError},
		{"error field in 200", 200, `{"error":"insufficient funds"}`, types.KindAPIError},
		{"empty 4xx body", 403, ``, types.KindAPIError},
		{"html error page", 200, `<html>502 Bad Gateway</html>`, types.KindInvalidJSON},
		{"truncated json", 200, `{"symbol": "SOL`, types.KindInvalidJSON},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			_, err := c.Balances(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if types.KindOf(err) != tc.kind {
				t.Errorf("kind = %s, want %s (err: %v)", types.KindOf(err), tc.kind, err)
			}
		})
	}
}

// Valid JSON of the wrong shape is an invalid-response error, not a panic or
// a silent zero value.
func TestDecodeShapeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1,2,3]`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Balances(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if types.KindOf(err) != types.KindInvalidResponse {
		t.Errorf("kind = %s, want %s", types.KindOf(err), types.KindInvalidResponse)
	}
}
