package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stubDiscover(authURL string) DiscoverFunc {
	return func(ctx context.Context, issuer string) (*ASMetadata, error) {
		return &ASMetadata{
			Issuer:                issuer,
			AuthorizationEndpoint: authURL,
			TokenEndpoint:         strings.TrimSuffix(authURL, "/authorize") + "/token",
		}, nil
	}
}

func failingDiscover(err error) DiscoverFunc {
	return func(ctx context.Context, issuer string) (*ASMetadata, error) {
		return nil, err
	}
}

func oauthDecl(id string) *Provider {
	return &Provider{
		ID:            id,
		Name:          id,
		Type:          TypeOAuth,
		ClientID:      "client-" + id,
		Authorization: EndpointURL("https://idp.example/" + id + "/authorize"),
		Token:         EndpointURL("https://idp.example/" + id + "/token"),
	}
}

func TestAssembleInjectsComputedURLs(t *testing.T) {
	decl := &Provider{ID: "creds", Name: "Credentials", Type: TypeCredentials}

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: decl}},
		BaseURL:   "https://app.example/auth/",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(res.Records))
	}
	rec := res.Records[0]
	if rec.SigninURL != "https://app.example/auth/signin/creds" {
		t.Fatalf("signin url mismatch: got %q", rec.SigninURL)
	}
	if rec.CallbackURL != "https://app.example/auth/callback/creds" {
		t.Fatalf("callback url mismatch: got %q", rec.CallbackURL)
	}
	// Non-OAuth providers pass through: no checks, mappers, endpoints.
	if rec.Checks != nil || rec.Profile != nil || rec.Account != nil || rec.Authorization != nil {
		t.Fatalf("credentials record should be untouched beyond computed URLs: %+v", rec)
	}
}

func TestAssembleDefaultsChecksToPKCE(t *testing.T) {
	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: oauthDecl("acme")}},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := res.Records[0]
	if len(rec.Checks) != 1 || rec.Checks[0] != CheckPKCE {
		t.Fatalf("checks should default to pkce, got %v", rec.Checks)
	}
}

func TestAssembleRedirectProxyForcesState(t *testing.T) {
	decl := oauthDecl("acme")
	decl.RedirectProxyURL = "https://proxy.example/relay"

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: decl}},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := res.Records[0]
	if !rec.HasCheck(CheckPKCE) || !rec.HasCheck(CheckState) {
		t.Fatalf("redirect proxy must force state alongside pkce, got %v", rec.Checks)
	}
	if rec.Provider.RedirectProxyURL != "https://proxy.example/relay/callback/acme" {
		t.Fatalf("proxy url not rewritten: got %q", rec.Provider.RedirectProxyURL)
	}
}

func TestAssembleInheritsGlobalRedirectProxy(t *testing.T) {
	res, err := Assemble(context.Background(), Options{
		Providers:        []Source{{Provider: oauthDecl("acme")}},
		BaseURL:          "https://app.example",
		RedirectProxyURL: "https://proxy.example",
		Logger:           discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := res.Records[0]
	if rec.Provider.RedirectProxyURL != "https://proxy.example/callback/acme" {
		t.Fatalf("global proxy default not inherited: got %q", rec.Provider.RedirectProxyURL)
	}
	if !rec.HasCheck(CheckState) {
		t.Fatalf("state check missing under inherited proxy: %v", rec.Checks)
	}
}

func TestAssembleMissingAuthorizationIsIsolated(t *testing.T) {
	broken := &Provider{ID: "broken", Type: TypeOAuth, ClientID: "x"}

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: broken}, {Provider: oauthDecl("good")}},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	})
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if !strings.Contains(cerr.Error(), "authorization endpoint required") {
		t.Fatalf("unexpected reason: %q", cerr.Error())
	}
	if len(res.Records) != 1 || res.Records[0].ID != "good" {
		t.Fatalf("sibling provider should survive, got %+v", res.Records)
	}
}

func TestAssembleDiscoveryFailureIsIsolated(t *testing.T) {
	withIssuer := &Provider{ID: "remote", Type: TypeOIDC, ClientID: "x", Issuer: "https://down.example"}

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: withIssuer}, {Provider: oauthDecl("good")}},
		BaseURL:   "https://app.example",
		Discover:  failingDiscover(errors.New("connection refused")),
		Logger:    discardLogger(),
	})
	var derr *DiscoveryError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DiscoveryError, got %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ID != "good" {
		t.Fatalf("sibling provider should survive discovery failure, got %+v", res.Records)
	}
}

func TestAssembleEndToEndWithDiscovery(t *testing.T) {
	srv := newIssuer(t, nil)

	creds := &Provider{ID: "creds", Type: TypeCredentials}
	remote := &Provider{ID: "remote", Type: TypeOAuth, ClientID: "x", Issuer: srv.URL}

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: creds}, {Provider: remote}},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if res.Records[0].ID != "creds" || res.Records[0].Authorization != nil {
		t.Fatalf("credentials record altered: %+v", res.Records[0])
	}
	oauth := res.Records[1]
	if oauth.Authorization == nil {
		t.Fatalf("oauth record missing authorization descriptor")
	}
	if !strings.Contains(oauth.Authorization.URL.RawQuery, "scope=openid+profile+email") {
		t.Fatalf("forced scope missing from query %q", oauth.Authorization.URL.RawQuery)
	}
}

func TestAssembleDeclaredParamsApplyOverDiscovery(t *testing.T) {
	decl := &Provider{
		ID:            "apple",
		Type:          TypeOIDC,
		ClientID:      "x",
		Issuer:        "https://appleid.example",
		Authorization: &EndpointRef{Params: map[string]any{"response_mode": "form_post"}},
	}

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: decl}},
		BaseURL:   "https://app.example",
		Discover:  stubDiscover("https://appleid.example/authorize"),
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := res.Records[0].Authorization.URL.Query()
	if q.Get("scope") != "openid profile email" {
		t.Fatalf("forced scope missing: %v", q)
	}
	if q.Get("response_mode") != "form_post" {
		t.Fatalf("declared params lost under discovery: %v", q)
	}
}

func TestAssembleResolvesFactories(t *testing.T) {
	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Factory: func() *Provider { return oauthDecl("lazy") }}},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ID != "lazy" {
		t.Fatalf("factory source not resolved: %+v", res.Records)
	}
}

func TestAssembleMergesOverride(t *testing.T) {
	decl := oauthDecl("acme")
	decl.Override = &Provider{
		Name:     "Custom Name",
		ClientID: "override-client",
		Checks:   []Check{CheckNonce},
	}

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: decl}},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := res.Records[0]
	if rec.Name != "Custom Name" {
		t.Fatalf("override name not applied: got %q", rec.Name)
	}
	if rec.ClientID != "override-client" {
		t.Fatalf("override client id not applied: got %q", rec.ClientID)
	}
	if len(rec.Checks) != 1 || rec.Checks[0] != CheckNonce {
		t.Fatalf("override checks should replace defaults: %v", rec.Checks)
	}
	// Fields the override left unset keep the declaration's defaults.
	if rec.Type != TypeOAuth || rec.Authorization == nil {
		t.Fatalf("defaults lost during override merge: %+v", rec)
	}
}

func TestAssembleResolvesMappers(t *testing.T) {
	withDefaults := oauthDecl("plain")

	custom := oauthDecl("custom")
	custom.Profile = func(claims map[string]any) (Profile, error) {
		return Profile{ID: "fixed"}, nil
	}

	res, err := Assemble(context.Background(), Options{
		Providers: []Source{{Provider: withDefaults}, {Provider: custom}},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plain := res.Records[0]
	if plain.Profile == nil || plain.Account == nil {
		t.Fatalf("default mappers not resolved")
	}
	p, err := plain.Profile(map[string]any{"sub": "1"})
	if err != nil || p.ID != "1" {
		t.Fatalf("default profile mapper misbehaves: %+v %v", p, err)
	}

	got, err := res.Records[1].Profile(map[string]any{"sub": "ignored"})
	if err != nil || got.ID != "fixed" {
		t.Fatalf("user-supplied profile mapper not preserved: %+v %v", got, err)
	}
}

func TestAssembleSelectsActive(t *testing.T) {
	res, err := Assemble(context.Background(), Options{
		Providers:  []Source{{Provider: oauthDecl("a")}, {Provider: oauthDecl("b")}},
		BaseURL:    "https://app.example",
		ProviderID: "b",
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Active == nil || res.Active.ID != "b" {
		t.Fatalf("active record mismatch: %+v", res.Active)
	}

	res, err = Assemble(context.Background(), Options{
		Providers:  []Source{{Provider: oauthDecl("a")}},
		BaseURL:    "https://app.example",
		ProviderID: "missing",
		Logger:     discardLogger(),
	})
	if err != nil {
		t.Fatalf("unknown active id must not be an error: %v", err)
	}
	if res.Active != nil {
		t.Fatalf("expected nil active for unknown id, got %+v", res.Active)
	}
}

func TestAssembleDoesNotMutateDeclaration(t *testing.T) {
	decl := oauthDecl("acme")
	src := Source{Provider: decl}

	if _, err := Assemble(context.Background(), Options{
		Providers: []Source{src},
		BaseURL:   "https://app.example",
		Logger:    discardLogger(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decl.SigninURL != "" || decl.CallbackURL != "" {
		t.Fatalf("assembly wrote computed URLs into the declaration: %+v", decl)
	}
	if decl.Checks != nil {
		t.Fatalf("assembly wrote checks into the declaration: %v", decl.Checks)
	}
	if decl.Profile != nil {
		t.Fatalf("assembly wrote mappers into the declaration")
	}
}
