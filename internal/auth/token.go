package auth

import (
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims describes the parts of a backend-issued JWT the client cares about.
type Claims struct {
	SubjectID string `json:"sub"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// PeekClaims decodes a JWT payload without verifying its signature. The
// client never trusts these claims for authorization; they only feed status
// output and logs. Opaque credentials report ok=false.
func PeekClaims(token string) (*Claims, bool) {
	if strings.Count(token, ".") != 2 {
		return nil, false
	}
	claims := &Claims{}
	_, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(token, claims)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// PeekExpiry returns the exp claim of a JWT credential, if it carries one.
func PeekExpiry(token string) (time.Time, bool) {
	claims, ok := PeekClaims(token)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// BearerHeaders returns the Authorization header map for token, or an empty
// map when there is no credential.
func BearerHeaders(token string) map[string]string {
	if token == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
