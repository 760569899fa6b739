package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/creatoros/go-auth-client/idp"
)

func testConfig(baseURL string) idp.Config {
	return idp.Config{
		BaseURL:     baseURL,
		Realm:       "creatorOs",
		ClientID:    "auth-service",
		RedirectURI: "http://localhost:3000/login",
		Scopes:      []string{"openid"},
	}
}

func TestNewKeycloakClientRejectsInvalidConfig(t *testing.T) {
	_, err := idp.NewKeycloakClient(idp.Config{Realm: "creatorOs"})
	require.Error(t, err)

	_, err = idp.NewKeycloakClient(idp.Config{
		BaseURL:     "not a url",
		Realm:       "creatorOs",
		ClientID:    "auth-service",
		RedirectURI: "http://localhost:3000/login",
	})
	require.Error(t, err)
}

func TestNewKeycloakClientWithDiscovery(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	issuer := srv.URL + "/realms/creatorOs"
	mux.HandleFunc("GET /realms/creatorOs/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/custom/auth",
			"token_endpoint":         issuer + "/custom/token",
			"jwks_uri":               issuer + "/custom/certs",
			"end_session_endpoint":   issuer + "/custom/logout",
		})
	})

	client, err := idp.NewKeycloakClientWithDiscovery(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)

	endpoints := client.Endpoints()
	require.Equal(t, issuer+"/custom/auth", endpoints.Authorization)
	require.Equal(t, issuer+"/custom/token", endpoints.Token)
	require.Equal(t, issuer+"/custom/logout", endpoints.EndSession)

	// Discovery metadata never advertises the registration or
	// forgot-credentials pages; those stay realm-derived.
	require.Equal(t, issuer+"/protocol/openid-connect/registrations", endpoints.Registration)
	require.Equal(t, issuer+"/protocol/openid-connect/forgot-credentials", endpoints.ForgotCredentials)

	loginURL, err := client.LoginURL(idp.AuthRequest{State: "s", CodeChallenge: "c"})
	require.NoError(t, err)
	require.Contains(t, loginURL, issuer+"/custom/auth?")
}

func TestNewKeycloakClientWithDiscoveryUnreachableIssuer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := idp.NewKeycloakClientWithDiscovery(context.Background(), testConfig(srv.URL))
	require.ErrorContains(t, err, "discovery")
}

func TestLoginURLShape(t *testing.T) {
	client, err := idp.NewKeycloakClient(testConfig("http://localhost:8081"))
	require.NoError(t, err)

	raw, err := client.LoginURL(idp.AuthRequest{
		State:         "state-1",
		CodeChallenge: "challenge-1",
		EmailHint:     "jamie@example.com",
	})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/realms/creatorOs/protocol/openid-connect/auth", parsed.Path)

	query := parsed.Query()
	require.Equal(t, "auth-service", query.Get("client_id"))
	require.Equal(t, "http://localhost:3000/login", query.Get("redirect_uri"))
	require.Equal(t, "code", query.Get("response_type"))
	require.Equal(t, "openid", query.Get("scope"))
	require.Equal(t, "state-1", query.Get("state"))
	require.Equal(t, "challenge-1", query.Get("code_challenge"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
	require.Equal(t, "login", query.Get("prompt"))
	require.Equal(t, "jamie@example.com", query.Get("login_hint"))
}

func TestRegisterURLUsesRegistrationsEndpoint(t *testing.T) {
	client, err := idp.NewKeycloakClient(testConfig("http://localhost:8081"))
	require.NoError(t, err)

	raw, err := client.RegisterURL(idp.AuthRequest{State: "s", CodeChallenge: "c"})
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/realms/creatorOs/protocol/openid-connect/registrations", parsed.Path)
	require.Empty(t, parsed.Query().Get("prompt"))
	require.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))
}

func TestLogoutURL(t *testing.T) {
	client, err := idp.NewKeycloakClient(testConfig("http://localhost:8081"))
	require.NoError(t, err)

	raw, err := client.LogoutURL("http://localhost:3000/?postLogout=1")
	require.NoError(t, err)

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/realms/creatorOs/protocol/openid-connect/logout", parsed.Path)
	require.Equal(t, "auth-service", parsed.Query().Get("client_id"))
	require.Equal(t, "http://localhost:3000/?postLogout=1", parsed.Query().Get("post_logout_redirect_uri"))

	_, err = client.LogoutURL("")
	require.Error(t, err)
}

func TestExchangeSendsAuthorizationCodeGrant(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		json.NewEncoder(w).Encode(idp.TokenResponse{
			AccessToken:  "access-1",
			TokenType:    "Bearer",
			ExpiresIn:    300,
			RefreshToken: "refresh-1",
		})
	}))
	defer srv.Close()

	client, err := idp.NewKeycloakClient(testConfig(srv.URL))
	require.NoError(t, err)

	resp, err := client.Exchange(context.Background(), "code-abc", "verifier-v1")
	require.NoError(t, err)
	require.Equal(t, "access-1", resp.AccessToken)
	require.Equal(t, "refresh-1", resp.RefreshToken)
	require.Equal(t, 300, resp.ExpiresIn)

	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "code-abc", form.Get("code"))
	require.Equal(t, "verifier-v1", form.Get("code_verifier"))
	require.Equal(t, "http://localhost:3000/login", form.Get("redirect_uri"))
	require.Equal(t, "auth-service", form.Get("client_id"))
}

func TestRefreshSendsRefreshTokenGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh-old", r.PostForm.Get("refresh_token"))
		json.NewEncoder(w).Encode(idp.TokenResponse{AccessToken: "access-2", ExpiresIn: 300})
	}))
	defer srv.Close()

	client, err := idp.NewKeycloakClient(testConfig(srv.URL))
	require.NoError(t, err)

	resp, err := client.Refresh(context.Background(), "refresh-old")
	require.NoError(t, err)
	require.Equal(t, "access-2", resp.AccessToken)
}

func TestTokenErrorIsNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "Code not valid",
		})
	}))
	defer srv.Close()

	client, err := idp.NewKeycloakClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.Exchange(context.Background(), "stale-code", "v")
	require.Error(t, err)

	oauthErr := &idp.Error{}
	require.ErrorAs(t, err, &oauthErr)
	require.Equal(t, "invalid_grant", oauthErr.Code)
	require.Equal(t, "Code not valid", oauthErr.Error())
}

func TestTokenBaseURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(idp.TokenResponse{AccessToken: "a", ExpiresIn: 60})
	}))
	defer srv.Close()

	cfg := testConfig("http://keycloak.example.com")
	cfg.TokenBaseURL = srv.URL
	client, err := idp.NewKeycloakClient(cfg)
	require.NoError(t, err)

	// Browser-facing URLs keep the public origin.
	loginURL, err := client.LoginURL(idp.AuthRequest{State: "s", CodeChallenge: "c"})
	require.NoError(t, err)
	require.Contains(t, loginURL, "http://keycloak.example.com/")

	// Token calls go through the override.
	_, err = client.PasswordCredentials(context.Background(), "jamie", "secret")
	require.NoError(t, err)
}
