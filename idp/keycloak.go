package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Config holds the settings needed to talk to a Keycloak realm.
type Config struct {
	// BaseURL is Keycloak's browser-facing origin. Redirect URLs must use it
	// so SSO cookies and enterprise login features keep working.
	BaseURL string `validate:"required,url"`

	// TokenBaseURL optionally overrides the origin for back-channel token
	// calls (e.g. a dev proxy avoiding CORS). Empty means BaseURL.
	TokenBaseURL string `validate:"omitempty,url"`

	Realm        string `validate:"required"`
	ClientID     string `validate:"required"`
	ClientSecret string

	// RedirectURI is the fixed callback the provider returns the browser to.
	RedirectURI string `validate:"required,url"`

	// Scopes requested on every authorization. Defaults to just "openid".
	Scopes []string
}

// Endpoints are the resolved provider URLs. Built from the realm layout or
// discovered via the OIDC metadata document.
type Endpoints struct {
	Authorization     string
	Registration      string
	ForgotCredentials string
	Token             string
	EndSession        string
}

// KeycloakClient implements Client against a Keycloak realm.
type KeycloakClient struct {
	cfg        Config
	endpoints  Endpoints
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Client = (*KeycloakClient)(nil)

// KeycloakOption configures a KeycloakClient.
type KeycloakOption func(*KeycloakClient)

// WithHTTPClient replaces the HTTP client used for token-endpoint calls.
func WithHTTPClient(hc *http.Client) KeycloakOption {
	return func(c *KeycloakClient) {
		c.httpClient = hc
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger zerolog.Logger) KeycloakOption {
	return func(c *KeycloakClient) {
		c.logger = logger
	}
}

// NewKeycloakClient validates cfg and builds a client with endpoints derived
// from Keycloak's fixed realm layout.
func NewKeycloakClient(cfg Config, options ...KeycloakOption) (*KeycloakClient, error) {
	c, err := newClient(cfg, options...)
	if err != nil {
		return nil, err
	}

	realmBase := realmURL(cfg.BaseURL, cfg.Realm)
	tokenBase := realmBase
	if cfg.TokenBaseURL != "" {
		tokenBase = realmURL(cfg.TokenBaseURL, cfg.Realm)
	}
	c.endpoints = Endpoints{
		Authorization:     realmBase + "/protocol/openid-connect/auth",
		Registration:      realmBase + "/protocol/openid-connect/registrations",
		ForgotCredentials: realmBase + "/protocol/openid-connect/forgot-credentials",
		Token:             tokenBase + "/protocol/openid-connect/token",
		EndSession:        realmBase + "/protocol/openid-connect/logout",
	}
	return c, nil
}

// NewKeycloakClientWithDiscovery resolves the authorization, token and
// end-session endpoints from the realm's OIDC discovery document instead of
// assuming the fixed layout. Registration and forgot-credentials stay
// realm-derived; discovery metadata does not advertise them.
func NewKeycloakClientWithDiscovery(ctx context.Context, cfg Config, options ...KeycloakOption) (*KeycloakClient, error) {
	c, err := newClient(cfg, options...)
	if err != nil {
		return nil, err
	}

	issuer := realmURL(cfg.BaseURL, cfg.Realm)
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewKeycloakClientWithDiscovery] discovery for %s", issuer)
	}

	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, errors.Wrap(err, "[NewKeycloakClientWithDiscovery] provider metadata")
	}

	endpoint := provider.Endpoint()
	c.endpoints = Endpoints{
		Authorization:     endpoint.AuthURL,
		Registration:      issuer + "/protocol/openid-connect/registrations",
		ForgotCredentials: issuer + "/protocol/openid-connect/forgot-credentials",
		Token:             endpoint.TokenURL,
		EndSession:        metadata.EndSessionEndpoint,
	}
	if c.endpoints.EndSession == "" {
		c.endpoints.EndSession = issuer + "/protocol/openid-connect/logout"
	}
	return c, nil
}

func newClient(cfg Config, options ...KeycloakOption) (*KeycloakClient, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "[idp.newClient] invalid config")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID}
	}

	c := &KeycloakClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Endpoints returns the resolved provider URLs.
func (c *KeycloakClient) Endpoints() Endpoints {
	return c.endpoints
}

func (c *KeycloakClient) LoginURL(req AuthRequest) (string, error) {
	query := c.authQuery(req)
	// Force the login screen even when the provider still has an SSO session,
	// so users on shared browsers can pick a different account.
	query.Set("prompt", "login")
	return c.endpoints.Authorization + "?" + query.Encode(), nil
}

func (c *KeycloakClient) RegisterURL(req AuthRequest) (string, error) {
	query := c.authQuery(req)
	return c.endpoints.Registration + "?" + query.Encode(), nil
}

func (c *KeycloakClient) PasswordResetURL(emailHint string) (string, error) {
	query := url.Values{}
	query.Set("client_id", c.cfg.ClientID)
	query.Set("redirect_uri", c.cfg.RedirectURI)
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(c.cfg.Scopes, " "))
	if emailHint != "" {
		query.Set("login_hint", emailHint)
	}
	return c.endpoints.ForgotCredentials + "?" + query.Encode(), nil
}

func (c *KeycloakClient) LogoutURL(postLogoutRedirectURI string) (string, error) {
	if postLogoutRedirectURI == "" {
		return "", errors.New("[LogoutURL] post-logout redirect URI is required")
	}
	query := url.Values{}
	query.Set("client_id", c.cfg.ClientID)
	query.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	return c.endpoints.EndSession + "?" + query.Encode(), nil
}

func (c *KeycloakClient) Exchange(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", string(AuthorizationCodeGrant))
	params.Set("client_id", c.cfg.ClientID)
	params.Set("code", code)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("code_verifier", codeVerifier)
	return c.tokenCall(ctx, params)
}

func (c *KeycloakClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", string(RefreshTokenGrant))
	params.Set("client_id", c.cfg.ClientID)
	params.Set("refresh_token", refreshToken)
	return c.tokenCall(ctx, params)
}

func (c *KeycloakClient) PasswordCredentials(ctx context.Context, username, password string) (*TokenResponse, error) {
	params := url.Values{}
	params.Set("grant_type", string(PasswordGrant))
	params.Set("client_id", c.cfg.ClientID)
	params.Set("username", username)
	params.Set("password", password)
	return c.tokenCall(ctx, params)
}

func (c *KeycloakClient) tokenCall(ctx context.Context, params url.Values) (*TokenResponse, error) {
	if c.cfg.ClientSecret != "" {
		params.Set("client_secret", c.cfg.ClientSecret)
	}

	grant := params.Get("grant_type")
	c.logger.Debug().Str("grant_type", grant).Str("url", c.endpoints.Token).Msg("token endpoint call")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Token, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[idp.tokenCall] build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "[idp.tokenCall] %s grant", grant)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[idp.tokenCall] read response")
	}

	if resp.StatusCode != http.StatusOK {
		oauthErr := &Error{}
		if err := json.Unmarshal(body, oauthErr); err != nil || oauthErr.Code == "" {
			return nil, errors.Errorf("[idp.tokenCall] %s grant failed: HTTP %d", grant, resp.StatusCode)
		}
		c.logger.Debug().Str("error", oauthErr.Code).Str("description", oauthErr.Description).Msg("token endpoint rejected grant")
		return nil, oauthErr
	}

	tokenResponse := &TokenResponse{}
	if err := json.Unmarshal(body, tokenResponse); err != nil {
		return nil, errors.Wrap(err, "[idp.tokenCall] decode token response")
	}
	return tokenResponse, nil
}

func (c *KeycloakClient) authQuery(req AuthRequest) url.Values {
	query := url.Values{}
	query.Set("client_id", c.cfg.ClientID)
	query.Set("redirect_uri", c.cfg.RedirectURI)
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(c.cfg.Scopes, " "))
	query.Set("state", req.State)
	query.Set("code_challenge", req.CodeChallenge)
	query.Set("code_challenge_method", "S256")
	if req.EmailHint != "" {
		query.Set("login_hint", req.EmailHint)
	}
	return query
}

func realmURL(base, realm string) string {
	return fmt.Sprintf("%s/realms/%s", strings.TrimRight(base, "/"), url.PathEscape(realm))
}
