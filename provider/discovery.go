package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DefaultScope is forced onto every discovered authorization endpoint:
// a provider cannot silently discover a narrower scope set.
const DefaultScope = "openid profile email"

// ASMetadata bundles the discovered authorization server metadata with
// the live discovery handle the protocol layer uses for token exchange.
type ASMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserInfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`

	// Raw is the full metadata document as served by the issuer.
	Raw map[string]any `json:"-"`

	// Provider is the discovery handle from the OIDC client library.
	Provider *oidc.Provider `json:"-"`
}

// DiscoverFunc fetches authorization server metadata for an issuer.
// Assembly uses it exclusively; tests substitute their own.
type DiscoverFunc func(ctx context.Context, issuer string) (*ASMetadata, error)

// Discoverer returns the default DiscoverFunc backed by the OIDC client
// library. A nil client uses http.DefaultClient.
func Discoverer(client *http.Client) DiscoverFunc {
	return func(ctx context.Context, issuer string) (*ASMetadata, error) {
		if client != nil {
			ctx = oidc.ClientContext(ctx, client)
		}
		op, err := oidc.NewProvider(ctx, issuer)
		if err != nil {
			return nil, err
		}
		md := &ASMetadata{Provider: op}
		if err := op.Claims(md); err != nil {
			return nil, fmt.Errorf("decode issuer metadata: %w", err)
		}
		if err := op.Claims(&md.Raw); err != nil {
			return nil, fmt.Errorf("decode issuer metadata: %w", err)
		}
		return md, nil
	}
}

// discoverAuthorization resolves the authorization endpoint descriptor
// for a provider that declared an issuer instead of explicit endpoints.
// This is the one network-bearing step of assembly.
func discoverAuthorization(ctx context.Context, discover DiscoverFunc, issuer string) (*Endpoint, error) {
	md, err := discover(ctx, issuer)
	if err != nil {
		return nil, &DiscoveryError{Issuer: issuer, Err: err}
	}
	if md.AuthorizationEndpoint == "" {
		return nil, &DiscoveryError{Issuer: issuer, Err: errors.New("metadata has no authorization endpoint")}
	}
	u, err := url.Parse(md.AuthorizationEndpoint)
	if err != nil {
		return nil, &DiscoveryError{Issuer: issuer, Err: fmt.Errorf("parse authorization endpoint: %w", err)}
	}

	q := u.Query()
	q.Set("scope", DefaultScope)
	u.RawQuery = q.Encode()

	return &Endpoint{URL: u, AS: md}, nil
}
