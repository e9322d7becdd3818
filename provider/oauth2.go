package provider

import (
	"golang.org/x/oauth2"
)

// OAuth2Config builds the oauth2 client configuration for a normalized
// record. The authorization URL keeps the query the normalizer
// serialized into it (forced scope, extra parameters); the token URL
// prefers discovered metadata over the declared endpoint.
func (r *Record) OAuth2Config() *oauth2.Config {
	cfg := &oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		RedirectURL:  r.RedirectURL(),
	}
	if r.Authorization != nil {
		cfg.Endpoint.AuthURL = r.Authorization.URL.String()
		if as := r.Authorization.AS; as != nil {
			cfg.Endpoint.TokenURL = as.TokenEndpoint
		}
	}
	if cfg.Endpoint.TokenURL == "" && r.Token != nil && !r.Token.IsPlaceholder() {
		cfg.Endpoint.TokenURL = r.Token.URL.String()
	}
	// Public clients authenticate in the request body.
	if r.ClientSecret == "" && r.ClientSecretFunc == nil {
		cfg.Endpoint.AuthStyle = oauth2.AuthStyleInParams
	}
	return cfg
}

// RedirectURL returns where the provider should send the authorization
// response: the redirect proxy when one is configured, the provider
// callback otherwise.
func (r *Record) RedirectURL() string {
	if r.Provider.RedirectProxyURL != "" {
		return r.Provider.RedirectProxyURL
	}
	return r.CallbackURL
}

// AuthCodeURL builds the authorization redirect for this record,
// applying whichever of the configured checks have a value to carry.
func (r *Record) AuthCodeURL(state, nonce, codeChallenge string) string {
	var opts []oauth2.AuthCodeOption
	if r.HasCheck(CheckNonce) && nonce != "" {
		opts = append(opts, oauth2.SetAuthURLParam("nonce", nonce))
	}
	if r.HasCheck(CheckPKCE) && codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return r.OAuth2Config().AuthCodeURL(state, opts...)
}
