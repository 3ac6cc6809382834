package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// newTokenEndpoint serves a canned successful token response.
func newTokenEndpoint(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"access_token": %q,
			"token_type": "Bearer",
			"refresh_token": "refresh-1",
			"expires_in": 3600
		}`, accessToken)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeClientSecret(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "client_secret.json")
	secret := fmt.Sprintf(`{
		"installed": {
			"client_id": "cid",
			"client_secret": "csecret",
			"auth_uri": "https://accounts.google.com/o/oauth2/auth",
			"token_uri": %q,
			"redirect_uris": ["urn:ietf:wg:oauth:2.0:oob", "http://localhost"]
		}
	}`, tokenURL)
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestProvider(t *testing.T, tokenURL string) (*Provider, string) {
	t.Helper()
	dir := t.TempDir()
	credentials := writeClientSecret(t, dir, tokenURL)
	tokenFile := filepath.Join(dir, "token.json")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider, err := New(credentials, tokenFile, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return provider, tokenFile
}

func writeToken(t *testing.T, path string, token *oauth2.Token) {
	t.Helper()
	data, err := json.Marshal(token)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestTokenSourceUsesValidCachedToken(t *testing.T) {
	provider, tokenFile := newTestProvider(t, "https://example.invalid/token")
	writeToken(t, tokenFile, &oauth2.Token{
		AccessToken: "cached-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	})

	source, err := provider.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	token, err := source.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "cached-token" {
		t.Errorf("AccessToken = %q, want the cached token", token.AccessToken)
	}
}

func TestTokenSourceRefreshesExpiredToken(t *testing.T) {
	endpoint := newTokenEndpoint(t, "refreshed-token")
	provider, tokenFile := newTestProvider(t, endpoint.URL)
	writeToken(t, tokenFile, &oauth2.Token{
		AccessToken:  "stale-token",
		TokenType:    "Bearer",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(-time.Hour),
	})

	source, err := provider.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	token, err := source.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "refreshed-token" {
		t.Errorf("AccessToken = %q, want the refreshed token", token.AccessToken)
	}

	// The refreshed token is persisted for the next run.
	saved, err := provider.tokenFromFile()
	if err != nil {
		t.Fatalf("tokenFromFile() error = %v", err)
	}
	if saved.AccessToken != "refreshed-token" {
		t.Errorf("saved AccessToken = %q, want the refreshed token", saved.AccessToken)
	}
}

func TestTokenSourceRunsInteractiveFlow(t *testing.T) {
	endpoint := newTokenEndpoint(t, "exchanged-token")
	provider, tokenFile := newTestProvider(t, endpoint.URL)
	provider.prompt = strings.NewReader("auth-code-123\n")

	source, err := provider.TokenSource(context.Background())
	if err != nil {
		t.Fatalf("TokenSource() error = %v", err)
	}

	token, err := source.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "exchanged-token" {
		t.Errorf("AccessToken = %q, want the exchanged token", token.AccessToken)
	}

	if _, err := os.Stat(tokenFile); err != nil {
		t.Errorf("token file not written after interactive flow: %v", err)
	}
}

func TestTokenSourceEmptyPromptFails(t *testing.T) {
	provider, _ := newTestProvider(t, "https://example.invalid/token")
	provider.prompt = strings.NewReader("")

	if _, err := provider.TokenSource(context.Background()); err == nil {
		t.Fatal("TokenSource() error = nil, want failure without an authorization code")
	}
}

func TestNewMissingClientSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := New("/nonexistent/client_secret.json", "token.json", logger); err == nil {
		t.Fatal("New() error = nil, want read failure")
	}
}
