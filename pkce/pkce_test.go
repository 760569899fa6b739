package pkce_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/creatoros/go-auth-client/pkce"
	"github.com/stretchr/testify/require"
)

func TestChallengeMatchesVerifier(t *testing.T) {
	pair := pkce.NewPair()

	hash := sha256.Sum256([]byte(pair.Verifier))
	expected := base64.RawURLEncoding.EncodeToString(hash[:])

	require.Equal(t, expected, pair.Challenge)
	require.NotContains(t, pair.Challenge, "=")
}

func TestPairsAreNeverReused(t *testing.T) {
	first := pkce.NewPair()
	second := pkce.NewPair()

	require.NotEqual(t, first.Verifier, second.Verifier)
	require.NotEqual(t, first.Challenge, second.Challenge)
}

func TestStatesAreDistinct(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		state := pkce.NewState()
		require.Len(t, state, 32)
		_, dup := seen[state]
		require.False(t, dup, "state generated twice")
		seen[state] = struct{}{}
	}
}
