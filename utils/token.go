package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the subset of the backend access-token claims the client
// cares about.
type SessionClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var ErrTokenExpired = errors.New("session token expired")

// ParseSessionToken decodes the backend access token without verifying the
// signature. The client never validates tokens, the backend does; it only
// needs the claims to decide whether a re-auth is required before connecting.
func ParseSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// TokenNeedsRefresh reports whether the token is expired or expires within
// the given leeway. Tokens without an exp claim never need a refresh.
func TokenNeedsRefresh(tokenString string, leeway time.Duration) (bool, error) {
	claims, err := ParseSessionToken(tokenString)
	if err != nil {
		return false, err
	}
	if claims.ExpiresAt == nil {
		return false, nil
	}
	return time.Now().Add(leeway).After(claims.ExpiresAt.Time), nil
}
