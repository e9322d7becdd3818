package provider

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const appleAudience = "https://appleid.apple.com"

// AppleClientSecret returns a SecretFunc minting the ES256-signed
// client secret Apple requires for token exchanges. The assertion is
// minted fresh on every call; ttl defaults to 5 minutes and may not
// exceed Apple's 6 month cap.
func AppleClientSecret(teamID, keyID, clientID string, key *ecdsa.PrivateKey, ttl time.Duration) SecretFunc {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return func(ctx context.Context) (string, error) {
		if key == nil {
			return "", fmt.Errorf("apple client secret: signing key required")
		}
		now := time.Now()
		tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
			"iss": teamID,
			"iat": now.Unix(),
			"exp": now.Add(ttl).Unix(),
			"aud": appleAudience,
			"sub": clientID,
		})
		tok.Header["kid"] = keyID

		signed, err := tok.SignedString(key)
		if err != nil {
			return "", fmt.Errorf("sign apple client secret: %w", err)
		}
		return signed, nil
	}
}

// ParseAppleSigningKey decodes the PEM-encoded EC private key Apple
// issues for Sign in with Apple.
func ParseAppleSigningKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse apple signing key: %w", err)
	}
	return key, nil
}
