// Package token inspects the access tokens minted by the identity provider.
// The client never verifies signatures - the auth service is the authority on
// token validity - but it does read claims for display and expiry fallbacks.
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims is the subset of access-token claims the client cares about.
type Claims struct {
	Subject           string   // Users unique ID
	Email             string   // Email claim, if present
	PreferredUsername string   // Keycloak's preferred_username
	EmailVerified     bool     // email_verified claim
	Roles             []string // Realm roles assigned to the user
	ExpiresAt         time.Time
}

// Inspect parses rawToken without verifying its signature and extracts claims.
// A token that cannot be parsed yields an error; validity decisions stay with
// the auth service.
func Inspect(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("[token.Inspect] empty token")
	}

	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "[token.Inspect] parse")
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("[token.Inspect] unexpected claims type")
	}

	claims := &Claims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if username, ok := mapClaims["preferred_username"].(string); ok {
		claims.PreferredUsername = username
	}
	if verified, ok := mapClaims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}
	claims.Roles = realmRoles(mapClaims)

	return claims, nil
}

// realmRoles digs Keycloak's realm_access.roles claim out of the token.
func realmRoles(claims jwtlib.MapClaims) []string {
	realmAccess, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return nil
	}
	rawRoles, ok := realmAccess["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(rawRoles))
	for _, r := range rawRoles {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
