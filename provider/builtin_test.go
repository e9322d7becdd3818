package provider

import (
	"context"
	"testing"
)

func TestTenantIssuer(t *testing.T) {
	cases := []struct {
		name    string
		base    string
		tenant  string
		want    string
		rewrote bool
	}{
		{
			name:    "common segment",
			base:    "https://login.microsoftonline.com/common/v2.0",
			tenant:  "tid-123",
			want:    "https://login.microsoftonline.com/tid-123/v2.0",
			rewrote: true,
		},
		{
			name:    "tenant marker",
			base:    "https://login.microsoftonline.com/{tenant}/v2.0",
			tenant:  "tid-123",
			want:    "https://login.microsoftonline.com/tid-123/v2.0",
			rewrote: true,
		},
		{
			name:    "trailing slash",
			base:    "https://login.microsoftonline.com/common/v2.0/",
			tenant:  "tid-123",
			want:    "https://login.microsoftonline.com/tid-123/v2.0",
			rewrote: true,
		},
		{
			name:   "empty tenant",
			base:   "https://login.microsoftonline.com/common/v2.0",
			tenant: "",
			want:   "https://login.microsoftonline.com/common/v2.0",
		},
		{
			name:   "non-microsoft issuer untouched",
			base:   "https://accounts.google.com/common",
			tenant: "tid-123",
			want:   "https://accounts.google.com/common",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, rewrote := tenantIssuer(tc.base, tc.tenant)
			if got != tc.want || rewrote != tc.rewrote {
				t.Fatalf("tenantIssuer(%q, %q) = %q, %v; want %q, %v",
					tc.base, tc.tenant, got, rewrote, tc.want, tc.rewrote)
			}
		})
	}
}

func TestEntraNarrowsIssuerToTenant(t *testing.T) {
	p := Entra("tid-123", "client", "secret")
	if p.Issuer != "https://login.microsoftonline.com/tid-123/v2.0" {
		t.Fatalf("issuer not narrowed: got %q", p.Issuer)
	}

	multi := Entra("", "client", "secret")
	if multi.Issuer != "https://login.microsoftonline.com/common/v2.0" {
		t.Fatalf("empty tenant should keep the common issuer, got %q", multi.Issuer)
	}
}

func TestGitHubProfileMapping(t *testing.T) {
	p := GitHub("client", "secret")
	if p.Profile == nil {
		t.Fatalf("github declaration must carry its own profile mapper")
	}

	got, err := p.Profile(map[string]any{
		"id":         float64(583231),
		"login":      "octocat",
		"email":      "octo@example.com",
		"avatar_url": "https://avatars.example/octocat.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "583231" {
		t.Fatalf("numeric id mismatch: got %q", got.ID)
	}
	if got.Name != "octocat" {
		t.Fatalf("login should back fill a missing name, got %q", got.Name)
	}
	if got.Image != "https://avatars.example/octocat.png" {
		t.Fatalf("avatar_url should map to image, got %q", got.Image)
	}

	named, err := p.Profile(map[string]any{"id": "1", "name": "The Octocat", "login": "octocat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if named.Name != "The Octocat" {
		t.Fatalf("explicit name should win over login, got %q", named.Name)
	}
}

func TestApplePreset(t *testing.T) {
	secret := func(ctx context.Context) (string, error) { return "minted", nil }
	p := Apple("com.example.app", secret)

	if p.Issuer != "https://appleid.apple.com" {
		t.Fatalf("issuer mismatch: got %q", p.Issuer)
	}
	if p.ClientSecretFunc == nil || p.ClientSecret != "" {
		t.Fatalf("apple must use a minting func, not a static secret")
	}
	if p.Authorization == nil || p.Authorization.Params["response_mode"] != "form_post" {
		t.Fatalf("form_post response mode missing: %+v", p.Authorization)
	}
	if !p.HasCheck(CheckState) || !p.HasCheck(CheckPKCE) {
		t.Fatalf("apple requires pkce and state, got %v", p.Checks)
	}
}

func TestBuiltinsReturnFreshDeclarations(t *testing.T) {
	a := Google("client", "secret")
	b := Google("client", "secret")
	a.Name = "mutated"
	if b.Name != "Google" {
		t.Fatalf("builtin declarations must not share state, got %q", b.Name)
	}
}
