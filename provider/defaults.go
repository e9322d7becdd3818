package provider

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// DefaultProfile maps a standard OIDC claim set to the canonical
// profile. The id comes from "sub", falling back to "id", and a fresh
// unique value when a provider supplies neither. Absent claims stay
// absent in the result.
func DefaultProfile(claims map[string]any) (Profile, error) {
	p := Profile{
		ID:    stringClaim(claims, "sub", "id"),
		Name:  stringClaim(claims, "name", "nickname", "preferred_username"),
		Email: stringClaim(claims, "email"),
		Image: stringClaim(claims, "picture"),
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p, nil
}

// DefaultAccount copies the standard token response fields verbatim,
// omitting whatever the provider did not send.
func DefaultAccount(tokens map[string]any) (Account, error) {
	return Account{
		AccessToken:  stringClaim(tokens, "access_token"),
		TokenType:    stringClaim(tokens, "token_type"),
		IDToken:      stringClaim(tokens, "id_token"),
		RefreshToken: stringClaim(tokens, "refresh_token"),
		ExpiresAt:    intClaim(tokens, "expires_at"),
		Scope:        stringClaim(tokens, "scope"),
		SessionState: stringClaim(tokens, "session_state"),
	}, nil
}

// TokenClaims flattens an oauth2 token, including its extra response
// fields, into the raw map an AccountFunc consumes.
func TokenClaims(tok *oauth2.Token) map[string]any {
	claims := make(map[string]any)
	if tok.AccessToken != "" {
		claims["access_token"] = tok.AccessToken
	}
	if tok.TokenType != "" {
		claims["token_type"] = tok.TokenType
	}
	if tok.RefreshToken != "" {
		claims["refresh_token"] = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		claims["expires_at"] = tok.Expiry.Unix()
	}
	for _, key := range []string{"id_token", "scope", "session_state"} {
		if v := tok.Extra(key); v != nil {
			claims[key] = v
		}
	}
	return claims
}

// stringClaim returns the first present key rendered as a string.
// Numeric values (GitHub sends numeric user ids) are formatted, not
// dropped.
func stringClaim(claims map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := claims[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case json.Number:
			return t.String()
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		case int64:
			return strconv.FormatInt(t, 10)
		}
	}
	return ""
}

func intClaim(claims map[string]any, key string) int64 {
	v, ok := claims[key]
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
