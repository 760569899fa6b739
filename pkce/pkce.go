// Package pkce generates the Proof Key for Code Exchange material used to bind
// an authorization code to the client that requested it (RFC 7636).
package pkce

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/oauth2"
)

const stateLength = 32

// URL-safe characters only, so the state survives query-string round trips untouched.
const stateAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~"

// Pair holds a PKCE verifier together with its derived S256 challenge.
// The verifier never leaves the client until the token exchange; only the
// challenge is sent with the authorization request.
type Pair struct {
	Verifier  string
	Challenge string
}

// NewPair generates a fresh verifier and its S256 challenge.
// Each authorization attempt must use a new pair - verifiers are single-use.
func NewPair() Pair {
	verifier := oauth2.GenerateVerifier()
	return Pair{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
	}
}

// NewState returns a fresh unguessable state parameter for CSRF correlation.
func NewState() string {
	ret := make([]byte, stateLength)
	for i := 0; i < stateLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(stateAlphabet))))
		if err != nil {
			panic("pkce: random number generation failed")
		}
		ret[i] = stateAlphabet[num.Int64()]
	}
	return string(ret)
}
