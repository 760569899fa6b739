// Package session owns the authenticated-session lifecycle: starting
// login/registration redirects, completing the OAuth2 code + PKCE exchange,
// persisting and restoring tokens, refreshing access tokens and tearing the
// session down on logout.
package session

import (
	"encoding/json"
	"time"

	"github.com/creatoros/go-auth-client/storage"
)

// Storage keys. The durable tokens and user records live in the durable tier;
// PKCE state lives in the session-scoped tier only, so an abandoned redirect
// cannot be completed from a fresh process.
const (
	tokensKey         = "creatoros.auth.tokens"
	userKey           = "creatoros.auth.user"
	profileKeyPrefix  = "creatoros_profile."
	verifierKeyPrefix = "creatoros.kc.verifier."
)

// Session is the bearer credential state for the logged-in identity.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"` // Empty means re-login is the only recovery
	ExpiresAt    time.Time `json:"accessTokenExpiresAt"`   // Absolute access-token expiry
}

// Valid reports whether the record is fully populated. Partial records read
// from storage are treated as absent, never used.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && !s.ExpiresAt.IsZero()
}

// ExpiresWithin reports whether the access token expires inside the skew
// window from now. A token on the boundary counts as already expired.
func (s *Session) ExpiresWithin(now time.Time, skew time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(skew))
}

// PendingAuthorization is the one-shot PKCE state for an in-flight redirect,
// keyed by the state parameter and consumed by the matching callback.
type PendingAuthorization struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"codeVerifier"`
	CreatedAt    time.Time `json:"createdAt"`
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

func verifierKey(state string) string {
	return verifierKeyPrefix + state
}

// loadJSON reads and decodes a stored record. Unparseable or missing records
// both come back as (false, nil) - the storage boundary treats them alike.
func loadJSON(store storage.Store, key string, out any) (bool, error) {
	data, err := store.Get(key)
	if err != nil {
		if err == storage.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, nil
	}
	return true, nil
}

func saveJSON(store storage.Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(key, data)
}
