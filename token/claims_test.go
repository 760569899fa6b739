package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/creatoros/go-auth-client/token"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestInspectExtractsKeycloakClaims(t *testing.T) {
	expiry := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	raw := signedToken(t, jwtlib.MapClaims{
		"sub":                "user-1",
		"exp":                expiry.Unix(),
		"email":              "jamie@example.com",
		"preferred_username": "jamie",
		"email_verified":     true,
		"realm_access": map[string]any{
			"roles": []any{"creator", "offline_access"},
		},
	})

	claims, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "jamie@example.com", claims.Email)
	require.Equal(t, "jamie", claims.PreferredUsername)
	require.True(t, claims.EmailVerified)
	require.Equal(t, []string{"creator", "offline_access"}, claims.Roles)
	require.WithinDuration(t, expiry, claims.ExpiresAt, time.Second)
}

func TestInspectToleratesMissingOptionalClaims(t *testing.T) {
	raw := signedToken(t, jwtlib.MapClaims{"sub": "user-2"})

	claims, err := token.Inspect(raw)
	require.NoError(t, err)
	require.Equal(t, "user-2", claims.Subject)
	require.Empty(t, claims.Roles)
	require.True(t, claims.ExpiresAt.IsZero())
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := token.Inspect("not-a-jwt")
	require.Error(t, err)

	_, err = token.Inspect("   ")
	require.Error(t, err)
}
