package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo describes the stored access token. Tokens that are not JWTs
// report only Present.
type TokenInfo struct {
	Present   bool
	JWT       bool
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (t TokenInfo) Expired(now time.Time) bool {
	return t.JWT && !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Inspect decodes the stored access token without verifying it. The client
// never holds the signing key, so this is informational only.
func (s *Store) Inspect(ctx context.Context) (TokenInfo, error) {
	token, err := s.creds.AccessToken(ctx)
	if err != nil {
		return TokenInfo{}, err
	}
	return InspectToken(token), nil
}

func InspectToken(token string) TokenInfo {
	if token == "" {
		return TokenInfo{}
	}
	info := TokenInfo{Present: true}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return info
	}
	info.JWT = true
	info.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}
