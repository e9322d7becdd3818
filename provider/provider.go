// Package provider normalizes heterogeneous OAuth 2.0 / OIDC provider
// declarations into one internal record shape consumed uniformly by the
// rest of the gateway. It merges per-provider defaults with user
// overrides, performs OIDC issuer discovery on demand, derives endpoint
// descriptors, and enforces the security checks (PKCE, state) the flow
// requires.
package provider

import (
	"context"
	"net/http"
	"slices"
)

// Type tags a provider declaration. Only the OAuth family (oauth, oidc)
// is normalized; email and credentials declarations pass through
// assembly unchanged apart from the computed sign-in/callback URLs.
type Type string

const (
	TypeOAuth       Type = "oauth"
	TypeOIDC        Type = "oidc"
	TypeEmail       Type = "email"
	TypeCredentials Type = "credentials"
)

// Check names a security validation applied to the authorization
// response.
type Check string

const (
	CheckPKCE  Check = "pkce"
	CheckState Check = "state"
	CheckNonce Check = "nonce"
)

// ProfileFunc maps a raw userinfo/ID-token claim set to the canonical
// profile shape.
type ProfileFunc func(claims map[string]any) (Profile, error)

// AccountFunc maps a raw token endpoint response to the canonical
// account shape.
type AccountFunc func(tokens map[string]any) (Account, error)

// SecretFunc mints a client secret on demand, for providers whose
// secret is a short-lived signed assertion rather than a static string.
type SecretFunc func(ctx context.Context) (string, error)

// RequestHook customizes an outgoing request to a provider endpoint. It
// is carried through normalization untouched and invoked by the protocol
// layer.
type RequestHook func(ctx context.Context, req *http.Request) error

// ConformHook rewrites a non-compliant provider response into spec shape
// before the protocol layer parses it.
type ConformHook func(resp *http.Response) (*http.Response, error)

// Provider declares one external identity source. A declaration carries
// the provider's defaults; Override, when set, is a deep-partial of the
// same shape supplied by the user and merged over those defaults during
// assembly.
//
// SigninURL and CallbackURL are computed during assembly from the base
// application URL and the provider ID; declaring them has no effect.
type Provider struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Type Type   `yaml:"type" json:"type"`

	// Issuer triggers OIDC discovery for the authorization endpoint
	// when set. Mutually optional with Authorization; at least one is
	// required for OAuth-family providers.
	Issuer string `yaml:"issuer" json:"issuer,omitempty"`

	ClientID     string `yaml:"client_id" json:"-"`
	ClientSecret string `yaml:"client_secret" json:"-"`

	// ClientSecretFunc supersedes ClientSecret when set.
	ClientSecretFunc SecretFunc `yaml:"-" json:"-"`

	Authorization *EndpointRef `yaml:"authorization" json:"-"`
	Token         *EndpointRef `yaml:"token" json:"-"`
	UserInfo      *EndpointRef `yaml:"userinfo" json:"-"`

	// Checks defaults to {pkce} during assembly. state is forced when a
	// redirect proxy is in play.
	Checks []Check `yaml:"checks" json:"checks,omitempty"`

	// RedirectProxyURL routes the provider callback through an
	// intermediary. Assembly appends /callback/{id} to it.
	RedirectProxyURL string `yaml:"redirect_proxy_url" json:"redirectProxyUrl,omitempty"`

	Profile ProfileFunc `yaml:"-" json:"-"`
	Account AccountFunc `yaml:"-" json:"-"`

	// Style carries presentation metadata for sign-in UIs.
	Style *Style `yaml:"style" json:"style,omitempty"`

	// Override is the user-supplied partial declaration, merged over
	// the defaults above at assembly time.
	Override *Provider `yaml:"-" json:"-"`

	SigninURL   string `yaml:"-" json:"signinUrl,omitempty"`
	CallbackURL string `yaml:"-" json:"callbackUrl,omitempty"`
}

// IsOIDC reports whether the provider performs full OpenID Connect.
func (p *Provider) IsOIDC() bool { return p.Type == TypeOIDC }

// IsOAuth2 reports whether the provider speaks plain OAuth 2.0 without
// ID tokens.
func (p *Provider) IsOAuth2() bool { return p.Type == TypeOAuth }

// IsOAuthFamily reports whether the provider participates in an
// authorization-code flow at all.
func (p *Provider) IsOAuthFamily() bool { return p.IsOIDC() || p.IsOAuth2() }

// HasCheck reports whether the named check is configured.
func (p *Provider) HasCheck(c Check) bool { return slices.Contains(p.Checks, c) }

// clone returns a deep copy so that assembly never writes into a
// caller-owned declaration.
func (p *Provider) clone() *Provider {
	if p == nil {
		return nil
	}
	c := *p
	c.Authorization = p.Authorization.clone()
	c.Token = p.Token.clone()
	c.UserInfo = p.UserInfo.clone()
	c.Checks = slices.Clone(p.Checks)
	if p.Style != nil {
		s := *p.Style
		c.Style = &s
	}
	c.Override = p.Override.clone()
	return &c
}

// Style is presentation metadata for a provider's sign-in button.
type Style struct {
	Logo string `yaml:"logo" json:"logo,omitempty"`
	Bg   string `yaml:"bg" json:"bg,omitempty"`
	Text string `yaml:"text" json:"text,omitempty"`
}

// Source yields a provider declaration: either a fixed value or a
// zero-argument factory building one. Factories resolve once, at the
// start of assembly.
type Source struct {
	Provider *Provider
	Factory  func() *Provider
}

func (s Source) resolve() *Provider {
	if s.Factory != nil {
		return s.Factory()
	}
	return s.Provider
}

// Profile is the canonical user shape mapped from provider claims.
// Fields left empty were absent from the provider response; absence is
// authoritative, not an error.
type Profile struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// Account is the canonical account shape mapped from a token endpoint
// response. Fields left empty were absent from the response.
type Account struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Scope        string `json:"scope,omitempty"`
	SessionState string `json:"session_state,omitempty"`
}

// Record is the fully normalized form of a provider declaration. For
// OAuth-family providers Authorization is always non-nil after assembly;
// Token and UserInfo may be nil when the protocol layer can infer them
// from discovered metadata.
//
// The endpoint descriptor fields shadow the declaration refs on the
// embedded Provider: downstream code sees the normalized shape only.
type Record struct {
	Provider

	Authorization *Endpoint
	Token         *Endpoint
	UserInfo      *Endpoint
}

// ResolveClientSecret returns the client secret for a token exchange,
// minting it when the provider uses dynamic secrets.
func (r *Record) ResolveClientSecret(ctx context.Context) (string, error) {
	if r.ClientSecretFunc != nil {
		return r.ClientSecretFunc(ctx)
	}
	return r.ClientSecret, nil
}
