package users_test

import (
	"testing"

	"github.com/creatoros/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

func fullProfile() users.CreatorProfile {
	return users.CreatorProfile{
		Username:        "creator",
		DisplayName:     "Creator",
		FullName:        "Jamie Creator",
		Bio:             "I make videos",
		Niche:           "tech",
		ProfilePhotoURL: "https://cdn.example.com/p.jpg",
		Location:        "Berlin",
		Language:        "en",
		DateOfBirth:     "1990-01-01",
		InstagramToken:  "ig-token",
		YouTubeToken:    "yt-token",
	}
}

func TestCompletionEmptyProfile(t *testing.T) {
	var p *users.CreatorProfile
	require.Equal(t, 0, p.Completion())
	require.False(t, p.Complete())
}

func TestCompletionFullProfile(t *testing.T) {
	p := fullProfile()
	require.Equal(t, 100, p.Completion())
	require.True(t, p.Complete())
}

func TestCompletionPartialProfile(t *testing.T) {
	p := users.CreatorProfile{Username: "creator", Bio: "hi"}
	require.Equal(t, 18, p.Completion()) // 2 of 11 fields
	require.False(t, p.Complete())
}

func TestBlankFieldsDoNotCount(t *testing.T) {
	p := users.CreatorProfile{Username: "   "}
	require.Equal(t, 0, p.Completion())
}

func TestMergeOverlaysNonEmptyFieldsOnly(t *testing.T) {
	base := fullProfile()
	merged := base.Merge(users.CreatorProfile{Bio: "new bio"})

	require.Equal(t, "new bio", merged.Bio)
	require.Equal(t, base.Username, merged.Username)
	require.Equal(t, base.YouTubeToken, merged.YouTubeToken)
	// The receiver is untouched.
	require.Equal(t, "I make videos", base.Bio)
}
