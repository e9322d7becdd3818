package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := Config{
		Server: ServerConfig{PublicURL: "https://auth.example.com", DevMode: true},
		Providers: ProvidersConfig{
			Entries: []ProviderEntry{
				{
					ID:            "corp",
					Type:          "oauth",
					ClientID:      "cid",
					ClientSecret:  "topsecret",
					Authorization: &EndpointConfig{URL: "https://idp.corp.example/authorize"},
					Token:         &EndpointConfig{URL: "https://idp.corp.example/token"},
				},
				{ID: "local", Type: "credentials"},
			},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).Routes())
	defer srv.Close()

	resp, body := get(t, srv, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var payload struct {
		Status    string `json:"status"`
		Providers int    `json:"providers"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "ok" || payload.Providers != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestProvidersListRedactsSecrets(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).Routes())
	defer srv.Close()

	resp, body := get(t, srv, "/providers")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if strings.Contains(body, "topsecret") || strings.Contains(body, "client_secret") {
		t.Fatalf("secret leaked into inspection payload: %s", body)
	}
	var views []providerView
	if err := json.Unmarshal([]byte(body), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 || views[0].ID != "corp" {
		t.Fatalf("unexpected views: %+v", views)
	}
	if views[0].Authorization == nil || views[0].Authorization.URL != "https://idp.corp.example/authorize" {
		t.Fatalf("authorization descriptor missing: %+v", views[0])
	}
	if views[0].SigninURL != "https://auth.example.com/signin/corp" {
		t.Fatalf("signin url mismatch: %q", views[0].SigninURL)
	}
}

func TestProviderByID(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).Routes())
	defer srv.Close()

	resp, body := get(t, srv, "/providers/corp")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var view providerView
	if err := json.Unmarshal([]byte(body), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != "corp" || len(view.Checks) != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}

	resp, _ = get(t, srv, "/providers/ghost")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown provider, got %d", resp.StatusCode)
	}
}

func TestAuthorizeURLDebug(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).Routes())
	defer srv.Close()

	resp, body := get(t, srv, "/providers/corp/authorize-url?state=st&code_challenge=ch")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(payload.URL, "https://idp.corp.example/authorize?") {
		t.Fatalf("unexpected base: %q", payload.URL)
	}
	for _, want := range []string{"state=st", "code_challenge=ch", "code_challenge_method=S256"} {
		if !strings.Contains(payload.URL, want) {
			t.Fatalf("authorize url missing %q: %q", want, payload.URL)
		}
	}

	resp, _ = get(t, srv, "/providers/local/authorize-url")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for credentials provider, got %d", resp.StatusCode)
	}
}
