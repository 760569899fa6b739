// Package idp talks to the OpenID Connect identity provider (Keycloak in
// CreatorOS deployments): it builds the browser-facing authorization,
// registration and logout URLs and performs the back-channel token-endpoint
// grants.
package idp

import (
	"context"
	"fmt"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code (plus the PKCE
	// verifier) for tokens. This is the canonical login path.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new access token
	// without re-authenticating the user.
	RefreshTokenGrant GrantType = "refresh_token"

	// PasswordGrant sends the user's credentials directly to the token
	// endpoint. Legacy path - kept for backends that still allow it.
	PasswordGrant GrantType = "password"
)

// AuthRequest carries the per-attempt values baked into an authorization URL.
type AuthRequest struct {
	// State is the anti-CSRF correlation value round-tripped through the provider.
	State string

	// CodeChallenge is the S256 challenge derived from this attempt's PKCE verifier.
	CodeChallenge string

	// EmailHint pre-fills the provider's email field (login_hint) when set.
	EmailHint string
}

// TokenResponse is the token endpoint's answer for all grant types (RFC 6749).
type TokenResponse struct {
	// AccessToken is the bearer credential for API calls. Short-lived.
	AccessToken string `json:"access_token"`

	// TokenType is "Bearer" for all grants this client uses.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken mints new access tokens. May be absent on refresh
	// responses when the provider does not rotate refresh tokens.
	RefreshToken string `json:"refresh_token,omitempty"`

	// RefreshExpiresIn is the refresh token lifetime in seconds (Keycloak extension).
	RefreshExpiresIn int `json:"refresh_expires_in,omitempty"`

	// Scope is the space-separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

// Error is the provider's structured OAuth2 error response.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *Error) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return "identity provider error"
}

func (e *Error) String() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Client is the narrow interface the session layer consumes. The production
// implementation is the Keycloak client; tests use idpfakes.
type Client interface {
	// LoginURL builds the authorization URL that opens the provider's login
	// screen. prompt=login is forced so shared browsers can switch accounts.
	LoginURL(req AuthRequest) (string, error)

	// RegisterURL builds the URL that opens the provider's registration UI
	// instead of the login form.
	RegisterURL(req AuthRequest) (string, error)

	// PasswordResetURL builds the URL for the provider's forgot-credentials flow.
	PasswordResetURL(emailHint string) (string, error)

	// LogoutURL builds the provider's end-session URL, clearing its SSO
	// cookie and returning the browser to postLogoutRedirectURI.
	LogoutURL(postLogoutRedirectURI string) (string, error)

	// Exchange trades an authorization code and its PKCE verifier for tokens.
	Exchange(ctx context.Context, code, codeVerifier string) (*TokenResponse, error)

	// Refresh trades a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// PasswordCredentials performs the direct password grant (legacy path).
	PasswordCredentials(ctx context.Context, username, password string) (*TokenResponse, error)
}
