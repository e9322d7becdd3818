package provider

import "strings"

// Built-in declarations for commonly deployed providers. Each call
// returns a fresh declaration; callers layer their own settings on via
// Override or by mutating the returned value before assembly.

// Google is a standard OIDC provider resolved entirely via discovery.
func Google(clientID, clientSecret string) *Provider {
	return &Provider{
		ID:           "google",
		Name:         "Google",
		Type:         TypeOIDC,
		Issuer:       "https://accounts.google.com",
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// GitHub speaks plain OAuth 2.0: no discovery, no ID tokens, and a user
// payload that needs its own profile mapping.
func GitHub(clientID, clientSecret string) *Provider {
	return &Provider{
		ID:           "github",
		Name:         "GitHub",
		Type:         TypeOAuth,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Authorization: &EndpointRef{
			URL:    "https://github.com/login/oauth/authorize",
			Params: map[string]any{"scope": "read:user user:email"},
		},
		Token:    EndpointURL("https://github.com/login/oauth/access_token"),
		UserInfo: EndpointURL("https://api.github.com/user"),
		Profile:  githubProfile,
		Style:    &Style{Bg: "#24292f", Text: "#fff"},
	}
}

func githubProfile(claims map[string]any) (Profile, error) {
	return Profile{
		ID:    stringClaim(claims, "id"),
		Name:  stringClaim(claims, "name", "login"),
		Email: stringClaim(claims, "email"),
		Image: stringClaim(claims, "avatar_url"),
	}, nil
}

// Entra configures Microsoft Entra ID. The issuer advertises the
// multi-tenant "common" endpoint; a tenant ID narrows it to the
// tenant-specific issuer, which is required for issuer validation to
// pass.
func Entra(tenantID, clientID, clientSecret string) *Provider {
	issuer := "https://login.microsoftonline.com/common/v2.0"
	if resolved, ok := tenantIssuer(issuer, tenantID); ok {
		issuer = resolved
	}
	return &Provider{
		ID:           "entra",
		Name:         "Microsoft Entra ID",
		Type:         TypeOIDC,
		Issuer:       issuer,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// tenantIssuer substitutes the tenant into a Microsoft issuer URL,
// replacing either a literal {tenant} marker or the /common segment.
func tenantIssuer(base, tenant string) (string, bool) {
	if base == "" || tenant == "" || !strings.Contains(base, "login.microsoftonline.com") {
		return base, false
	}
	trimmed := strings.TrimSuffix(base, "/")
	if strings.Contains(trimmed, "{tenant}") {
		return strings.ReplaceAll(trimmed, "{tenant}", tenant), true
	}
	if strings.Contains(trimmed, "/common") {
		return strings.Replace(trimmed, "/common", "/"+tenant, 1), true
	}
	return base, false
}

// Auth0 configures an Auth0 tenant by domain, e.g. "acme.auth0.com".
func Auth0(domain, clientID, clientSecret string) *Provider {
	return &Provider{
		ID:           "auth0",
		Name:         "Auth0",
		Type:         TypeOIDC,
		Issuer:       "https://" + strings.TrimSuffix(domain, "/") + "/",
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
}

// Apple configures Sign in with Apple. Apple has no static client
// secret: secret mints a short-lived ES256 assertion per exchange (see
// AppleClientSecret). Web flows use form_post, so the state check is
// mandatory alongside PKCE.
func Apple(clientID string, secret SecretFunc) *Provider {
	return &Provider{
		ID:               "apple",
		Name:             "Apple",
		Type:             TypeOIDC,
		Issuer:           "https://appleid.apple.com",
		ClientID:         clientID,
		ClientSecretFunc: secret,
		Authorization: &EndpointRef{
			Params: map[string]any{"response_mode": "form_post"},
		},
		Checks: []Check{CheckPKCE, CheckState},
	}
}
