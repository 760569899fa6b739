// Package users holds the locally persisted view of the logged-in creator:
// the canonical user record returned by the auth service plus the profile data
// the app collects during onboarding.
package users

import (
	"math"
	"strings"
)

// Snapshot is the durable record of the logged-in identity. It is written
// after every user sync and refreshed when a restored session revalidates.
type Snapshot struct {
	ID                string          `json:"id"`                 // Subject identifier from the identity provider
	Email             string          `json:"email,omitempty"`    // User's email address
	Username          string          `json:"username,omitempty"` // Preferred username
	Roles             []string        `json:"roles,omitempty"`    // Realm roles granted to the user
	IsEmailVerified   bool            `json:"isEmailVerified"`
	IsProfileComplete bool            `json:"isProfileComplete"` // Recomputed locally from Profile
	Profile           *CreatorProfile `json:"profileData,omitempty"`
}

// CreatorProfile is the app-defined profile a creator fills in after signup.
// Completion is computed from the fraction of these fields populated.
type CreatorProfile struct {
	ID              string `json:"id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	Username        string `json:"username,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	FullName        string `json:"fullName,omitempty"`
	Bio             string `json:"bio,omitempty"`
	Niche           string `json:"niche,omitempty"`
	ProfilePhotoURL string `json:"profile_photo_url,omitempty"`
	Location        string `json:"location,omitempty"`
	Language        string `json:"language,omitempty"`
	DateOfBirth     string `json:"dateOfBirth,omitempty"`
	InstagramToken  string `json:"instagramToken,omitempty"`
	YouTubeToken    string `json:"youtubeToken,omitempty"`
}

// completionFields lists the profile values that count towards completion.
// ID and UserID are bookkeeping and excluded.
func (p *CreatorProfile) completionFields() []string {
	return []string{
		p.Username,
		p.DisplayName,
		p.Bio,
		p.Niche,
		p.ProfilePhotoURL,
		p.Location,
		p.Language,
		p.FullName,
		p.DateOfBirth,
		p.InstagramToken,
		p.YouTubeToken,
	}
}

// Completion returns the percentage of profile fields populated, 0-100.
func (p *CreatorProfile) Completion() int {
	if p == nil {
		return 0
	}
	fields := p.completionFields()
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	return int(math.Round(float64(filled) / float64(len(fields)) * 100))
}

// Complete reports whether every completion-relevant field is populated.
func (p *CreatorProfile) Complete() bool {
	return p.Completion() >= 100
}

// Merge overlays non-empty fields from updates onto p and returns the result.
// p itself is not modified.
func (p *CreatorProfile) Merge(updates CreatorProfile) CreatorProfile {
	merged := CreatorProfile{}
	if p != nil {
		merged = *p
	}
	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&merged.ID, updates.ID)
	overlay(&merged.UserID, updates.UserID)
	overlay(&merged.Username, updates.Username)
	overlay(&merged.DisplayName, updates.DisplayName)
	overlay(&merged.FullName, updates.FullName)
	overlay(&merged.Bio, updates.Bio)
	overlay(&merged.Niche, updates.Niche)
	overlay(&merged.ProfilePhotoURL, updates.ProfilePhotoURL)
	overlay(&merged.Location, updates.Location)
	overlay(&merged.Language, updates.Language)
	overlay(&merged.DateOfBirth, updates.DateOfBirth)
	overlay(&merged.InstagramToken, updates.InstagramToken)
	overlay(&merged.YouTubeToken, updates.YouTubeToken)
	return merged
}
