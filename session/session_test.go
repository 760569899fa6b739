package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/creatoros/go-auth-client/storage/memstore"
)

func TestSessionValid(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var nilSession *Session
	require.False(t, nilSession.Valid())
	require.False(t, (&Session{}).Valid())
	require.False(t, (&Session{AccessToken: "a"}).Valid())
	require.False(t, (&Session{RefreshToken: "r", ExpiresAt: expiry}).Valid())
	require.True(t, (&Session{AccessToken: "a", ExpiresAt: expiry}).Valid())
}

func TestSessionExpiresWithin(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	skew := 15 * time.Second

	require.False(t, (&Session{ExpiresAt: now.Add(16 * time.Second)}).ExpiresWithin(now, skew))
	// The boundary counts as expired.
	require.True(t, (&Session{ExpiresAt: now.Add(15 * time.Second)}).ExpiresWithin(now, skew))
	require.True(t, (&Session{ExpiresAt: now.Add(10 * time.Second)}).ExpiresWithin(now, skew))
	require.True(t, (&Session{ExpiresAt: now.Add(-time.Minute)}).ExpiresWithin(now, skew))
}

func TestLoadJSONMissingAndUnparseable(t *testing.T) {
	store := memstore.New()

	found, err := loadJSON(store, "absent", &Session{})
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set("garbage", []byte("{not json")))
	found, err = loadJSON(store, "garbage", &Session{})
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadJSONRoundTrip(t *testing.T) {
	store := memstore.New()
	saved := &Session{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, saveJSON(store, tokensKey, saved))

	loaded := &Session{}
	found, err := loadJSON(store, tokensKey, loaded)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, saved, loaded)
}
