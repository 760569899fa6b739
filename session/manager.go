package session

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/creatoros/go-auth-client/authapi"
	"github.com/creatoros/go-auth-client/idp"
	"github.com/creatoros/go-auth-client/pkce"
	"github.com/creatoros/go-auth-client/storage"
	"github.com/creatoros/go-auth-client/token"
	"github.com/creatoros/go-auth-client/users"
)

const (
	// expirySkew: tokens within this window of their expiry are treated as
	// already expired, so calls in flight don't race the deadline.
	expirySkew = 15 * time.Second

	// defaultReplayWindow covers duplicate callback invocations (double-mount
	// effects, impatient reloads) without blocking a genuine later retry.
	defaultReplayWindow = 30 * time.Second
)

// Mode selects which identity-provider UI a redirect opens.
type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

// Navigator performs the redirect side effect - in the CLI it opens the
// system browser. Injected so tests observe navigation instead of doing it.
type Navigator interface {
	Navigate(url string) error
}

// Deps holds the manager's collaborators. All of them are required.
type Deps struct {
	IdentityProvider idp.Client    // Authorization and token endpoints
	AuthService      authapi.Client // Canonical user record backend
	Durable          storage.Store // Survives restarts: tokens, user snapshot, profiles
	Scoped           storage.Store // Process lifetime only: PKCE state
	Navigator        Navigator     // Browser redirect side effect
}

// Manager owns the authenticated-session lifecycle for one application
// instance. All methods are safe for concurrent use.
type Manager struct {
	deps                  Deps
	postLogoutRedirectURI string
	appRootURL            string
	replayWindow          time.Duration

	guard        *gocache.Cache    // callback replay guard, keyed by authorization code
	refreshGroup singleflight.Group
	nowTime      func() time.Time
	logger       zerolog.Logger

	mu            sync.RWMutex
	session       *Session
	user          *users.Snapshot
	status        Status
	pendingStates map[string]struct{} // states issued by this instance, for logout cleanup
}

// Option configures optional Manager behaviour.
type Option func(*Manager)

// WithNowTime sets the clock (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithReplayWindow overrides the duplicate-callback window (testing).
func WithReplayWindow(window time.Duration) Option {
	return func(m *Manager) {
		m.replayWindow = window
	}
}

// NewManager builds a Manager. postLogoutRedirectURI is where the provider
// sends the browser after its own logout; appRootURL is the fallback
// navigation target when the logout URL cannot be built.
func NewManager(deps Deps, postLogoutRedirectURI, appRootURL string, options ...Option) (*Manager, error) {
	if deps.IdentityProvider == nil {
		return nil, errors.New("[NewManager] identity provider client is required")
	}
	if deps.AuthService == nil {
		return nil, errors.New("[NewManager] auth service client is required")
	}
	if deps.Durable == nil {
		return nil, errors.New("[NewManager] durable store is required")
	}
	if deps.Scoped == nil {
		return nil, errors.New("[NewManager] scoped store is required")
	}
	if deps.Navigator == nil {
		return nil, errors.New("[NewManager] navigator is required")
	}
	if appRootURL == "" {
		appRootURL = "/"
	}

	m := &Manager{
		deps:                  deps,
		postLogoutRedirectURI: postLogoutRedirectURI,
		appRootURL:            appRootURL,
		replayWindow:          defaultReplayWindow,
		nowTime:               time.Now,
		logger:                zerolog.Nop(),
		status:                StatusUnauthenticated,
		pendingStates:         make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	m.guard = gocache.New(m.replayWindow, time.Minute)
	return m, nil
}

// BeginAuthRedirect generates fresh PKCE material, stashes it in the
// session-scoped store keyed by state, and navigates to the provider's login
// or registration UI. Every call produces new state and verifier values.
func (m *Manager) BeginAuthRedirect(mode Mode, emailHint string) error {
	pair := pkce.NewPair()
	state := pkce.NewState()

	pending := PendingAuthorization{
		State:        state,
		CodeVerifier: pair.Verifier,
		CreatedAt:    m.nowTime(),
	}
	if err := saveJSON(m.deps.Scoped, verifierKey(state), pending); err != nil {
		return errors.Wrap(err, "[BeginAuthRedirect] store pending authorization")
	}

	request := idp.AuthRequest{
		State:         state,
		CodeChallenge: pair.Challenge,
		EmailHint:     emailHint,
	}

	var (
		authURL string
		err     error
	)
	if mode == ModeRegister {
		authURL, err = m.deps.IdentityProvider.RegisterURL(request)
	} else {
		authURL, err = m.deps.IdentityProvider.LoginURL(request)
	}
	if err != nil {
		_ = m.deps.Scoped.Delete(verifierKey(state))
		return errors.Wrapf(err, "[BeginAuthRedirect] build %s URL", mode)
	}

	m.mu.Lock()
	m.pendingStates[state] = struct{}{}
	m.status = StatusRedirecting
	m.mu.Unlock()

	m.logger.Info().Str("mode", string(mode)).Msg("redirecting to identity provider")
	if err := m.deps.Navigator.Navigate(authURL); err != nil {
		return errors.Wrap(err, "[BeginAuthRedirect] navigate")
	}
	return nil
}

// BeginPasswordReset navigates to the provider's forgot-credentials flow.
// The provider runs the whole email round trip; there is no callback to handle.
func (m *Manager) BeginPasswordReset(emailHint string) error {
	resetURL, err := m.deps.IdentityProvider.PasswordResetURL(emailHint)
	if err != nil {
		return errors.Wrap(err, "[BeginPasswordReset] build URL")
	}
	if err := m.deps.Navigator.Navigate(resetURL); err != nil {
		return errors.Wrap(err, "[BeginPasswordReset] navigate")
	}
	return nil
}

// HandleRedirectCallback completes the authorization-code flow for the
// callback URL the provider redirected to. An error parameter is benign - the
// manager just stays unauthenticated. Duplicate deliveries of the same code
// inside the replay window are no-ops.
//
// Stripping the OAuth parameters from the visible URL is the callback route's
// job and happens regardless of the outcome here.
func (m *Manager) HandleRedirectCallback(ctx context.Context, callbackURL string) error {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return errors.Wrap(err, "[HandleRedirectCallback] parse callback URL")
	}
	query := parsed.Query()

	if errParam := query.Get("error"); errParam != "" {
		m.logger.Info().Str("error", errParam).Str("description", query.Get("error_description")).
			Msg("authorization declined by provider")
		m.setStatus(StatusUnauthenticated)
		return nil
	}

	code := query.Get("code")
	if code == "" {
		return nil
	}

	// The guard entry is recorded before any async work so a concurrent
	// duplicate invocation cannot slip past while the exchange is in flight.
	// Add is atomic: exactly one delivery of a code wins the slot.
	if err := m.guard.Add(code, m.nowTime(), gocache.DefaultExpiration); err != nil {
		m.logger.Debug().Msg("duplicate callback for recently handled code, skipping")
		return nil
	}

	m.setStatus(StatusCallbackPending)

	state := query.Get("state")
	pending, found := m.consumePending(state)
	if !found {
		// Common case: the user resubmitted a stale provider page. If the
		// stored session still checks out, keep it and treat the callback as
		// noise rather than tearing anything down.
		if m.adoptStoredSession(ctx) {
			m.logger.Info().Msg("stale callback ignored, existing session still valid")
			return nil
		}
		m.failCallback(code)
		return errors.Wrap(ErrInvalidLoginState, "[HandleRedirectCallback]")
	}

	tokenResponse, err := m.deps.IdentityProvider.Exchange(ctx, code, pending.CodeVerifier)
	if err != nil {
		m.failCallback(code)
		return errors.Wrap(err, "[HandleRedirectCallback] code exchange")
	}

	if err := m.establishSession(ctx, tokenResponse); err != nil {
		m.failCallback(code)
		return errors.Wrap(err, "[HandleRedirectCallback]")
	}
	return nil
}

// LoginWithPassword performs the direct password grant against the provider.
// Legacy path; the PKCE redirect flow is canonical.
func (m *Manager) LoginWithPassword(ctx context.Context, username, password string) error {
	tokenResponse, err := m.deps.IdentityProvider.PasswordCredentials(ctx, username, password)
	if err != nil {
		return errors.Wrap(err, "[LoginWithPassword] password grant")
	}
	if err := m.establishSession(ctx, tokenResponse); err != nil {
		m.teardown()
		return errors.Wrap(err, "[LoginWithPassword]")
	}
	return nil
}

// RestoreSession loads the persisted session and user snapshot, populates
// in-memory state optimistically, then validates the access token against the
// auth service. A rejected token destroys the stored session - the provider
// has revoked it and retrying would loop forever.
//
// Callers must not invoke this when the startup URL carries OAuth callback
// parameters; HandleRedirectCallback owns that path.
func (m *Manager) RestoreSession(ctx context.Context) error {
	restored := &Session{}
	found, err := loadJSON(m.deps.Durable, tokensKey, restored)
	if err != nil {
		return errors.Wrap(err, "[RestoreSession] load tokens")
	}
	if !found || !restored.Valid() {
		return nil
	}

	snapshot := &users.Snapshot{}
	if ok, _ := loadJSON(m.deps.Durable, userKey, snapshot); !ok {
		snapshot = nil
	}
	if snapshot != nil && snapshot.Profile == nil {
		snapshot.Profile = m.loadProfile(snapshot.ID)
	}

	// Optimistic: let callers render from the snapshot while validation runs.
	m.mu.Lock()
	m.session = restored
	m.user = snapshot
	m.status = StatusAuthenticated
	m.mu.Unlock()

	me, err := m.deps.AuthService.Me(ctx, restored.AccessToken)
	if err != nil {
		m.logger.Info().Err(err).Msg("restored session failed validation, logging out locally")
		m.teardown()
		return nil
	}

	profile := m.loadProfile(me.ID)
	hydrated := m.buildSnapshot(restored.AccessToken, me, profile)
	if err := saveJSON(m.deps.Durable, userKey, hydrated); err != nil {
		return errors.Wrap(err, "[RestoreSession] persist snapshot")
	}

	m.mu.Lock()
	m.user = hydrated
	m.mu.Unlock()
	return nil
}

// GetValidAccessToken returns an access token that is valid for at least the
// skew window, refreshing first when needed. Concurrent callers during a
// refresh share one in-flight token-endpoint call - refresh tokens are
// single-use server-side, so duplicate refreshes would invalidate each other.
func (m *Manager) GetValidAccessToken(ctx context.Context) (string, error) {
	current := m.currentSession()
	if current == nil {
		return "", errors.Wrap(ErrNotAuthenticated, "[GetValidAccessToken]")
	}

	now := m.nowTime()
	if !current.ExpiresWithin(now, expirySkew) {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		return "", errors.Wrap(ErrSessionExpired, "[GetValidAccessToken]")
	}

	result, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		// Re-check under the flight: an earlier caller may have refreshed
		// between our expiry check and joining the group.
		latest := m.currentSession()
		if latest == nil {
			return "", ErrNotAuthenticated
		}
		if !latest.ExpiresWithin(m.nowTime(), expirySkew) {
			return latest.AccessToken, nil
		}

		response, err := m.deps.IdentityProvider.Refresh(ctx, latest.RefreshToken)
		if err != nil {
			m.teardown()
			return "", errors.Wrap(err, "token refresh")
		}

		updated := m.sessionFromTokenResponse(response)
		if updated.RefreshToken == "" {
			// Providers that don't rotate refresh tokens omit them here.
			updated.RefreshToken = latest.RefreshToken
		}
		if err := saveJSON(m.deps.Durable, tokensKey, updated); err != nil {
			return "", errors.Wrap(err, "persist refreshed tokens")
		}

		m.mu.Lock()
		m.session = updated
		m.mu.Unlock()
		return updated.AccessToken, nil
	})
	if err != nil {
		return "", errors.Wrap(err, "[GetValidAccessToken]")
	}
	return result.(string), nil
}

// Logout invalidates the refresh token server-side when it can, always tears
// the local session down, and finishes by navigating to the provider's
// end-session URL so its SSO cookie is cleared too. Without that, registering
// a different account can fail with "already authenticated as different user".
func (m *Manager) Logout(ctx context.Context) error {
	if accessToken, err := m.GetValidAccessToken(ctx); err == nil {
		if err := m.deps.AuthService.Logout(ctx, accessToken); err != nil {
			m.logger.Warn().Err(err).Msg("backend logout failed, continuing with local teardown")
		}
	}

	m.teardown()

	logoutURL, err := m.deps.IdentityProvider.LogoutURL(m.postLogoutRedirectURI)
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not build provider logout URL, falling back to app root")
		return m.deps.Navigator.Navigate(m.appRootURL)
	}
	if err := m.deps.Navigator.Navigate(logoutURL); err != nil {
		return m.deps.Navigator.Navigate(m.appRootURL)
	}
	return nil
}

// UpdateProfile merges updates into the creator profile, persists it under
// the per-user key and recomputes profile completion.
func (m *Manager) UpdateProfile(ctx context.Context, updates users.CreatorProfile) (*users.CreatorProfile, error) {
	if _, err := m.GetValidAccessToken(ctx); err != nil {
		return nil, errors.Wrap(err, "[UpdateProfile]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return nil, errors.Wrap(ErrNotAuthenticated, "[UpdateProfile]")
	}

	current := m.user.Profile
	merged := current.Merge(updates)
	merged.UserID = m.user.ID
	if merged.ID == "" {
		merged.ID = newProfileID()
	}

	if err := saveJSON(m.deps.Durable, profileKey(m.user.ID), merged); err != nil {
		return nil, errors.Wrap(err, "[UpdateProfile] persist profile")
	}

	m.user.Profile = &merged
	m.user.IsProfileComplete = merged.Complete()
	if err := saveJSON(m.deps.Durable, userKey, m.user); err != nil {
		return nil, errors.Wrap(err, "[UpdateProfile] persist snapshot")
	}

	profileCopy := merged
	return &profileCopy, nil
}

// CurrentUser returns the loaded user snapshot, if any.
func (m *Manager) CurrentUser() (*users.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil, false
	}
	snapshot := *m.user
	return &snapshot, true
}

// IsAuthenticated reports whether a session is currently loaded.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Valid()
}

// Status returns the manager's position in the auth lifecycle.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// ProfileCompletion returns the current profile's completion percentage.
func (m *Manager) ProfileCompletion() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return 0
	}
	return m.user.Profile.Completion()
}

// establishSession persists tokens, syncs the canonical user record and
// writes the merged snapshot. Used by both the code exchange and the
// password grant.
func (m *Manager) establishSession(ctx context.Context, response *idp.TokenResponse) error {
	sess := m.sessionFromTokenResponse(response)
	if !sess.Valid() {
		return errors.New("establish session: token response missing access token or expiry")
	}
	if err := saveJSON(m.deps.Durable, tokensKey, sess); err != nil {
		return errors.Wrap(err, "persist tokens")
	}

	m.mu.Lock()
	m.session = sess
	m.mu.Unlock()

	synced, err := m.deps.AuthService.SyncUser(ctx, sess.AccessToken)
	if err != nil {
		return errors.Wrap(err, "user sync")
	}

	profile := m.loadProfile(synced.ID)
	snapshot := m.buildSnapshot(sess.AccessToken, synced, profile)
	if err := saveJSON(m.deps.Durable, userKey, snapshot); err != nil {
		return errors.Wrap(err, "persist snapshot")
	}

	m.mu.Lock()
	m.user = snapshot
	m.status = StatusAuthenticated
	m.mu.Unlock()

	m.logger.Info().Str("user_id", synced.ID).Msg("session established")
	return nil
}

// buildSnapshot merges the authoritative user record with the locally held
// profile. Email verification comes from the access token's claims; profile
// completion is always recomputed locally.
func (m *Manager) buildSnapshot(accessToken string, user *authapi.User, profile *users.CreatorProfile) *users.Snapshot {
	snapshot := &users.Snapshot{
		ID:                user.ID,
		Email:             user.Email,
		Username:          user.Username,
		Roles:             user.Roles,
		IsProfileComplete: profile.Complete(),
		Profile:           profile,
	}
	if claims, err := token.Inspect(accessToken); err == nil {
		snapshot.IsEmailVerified = claims.EmailVerified
		if len(snapshot.Roles) == 0 {
			snapshot.Roles = claims.Roles
		}
	}
	return snapshot
}

// sessionFromTokenResponse computes the absolute expiry. When the provider
// omits expires_in, the access token's own exp claim is the fallback.
func (m *Manager) sessionFromTokenResponse(response *idp.TokenResponse) *Session {
	expiresAt := time.Time{}
	if response.ExpiresIn > 0 {
		expiresAt = m.nowTime().Add(time.Duration(response.ExpiresIn) * time.Second)
	} else if claims, err := token.Inspect(response.AccessToken); err == nil {
		expiresAt = claims.ExpiresAt
	}
	return &Session{
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}

// consumePending reads and deletes the pending authorization for state.
// One-shot: even a failed exchange never reuses a verifier.
func (m *Manager) consumePending(state string) (*PendingAuthorization, bool) {
	if state == "" {
		return nil, false
	}
	pending := &PendingAuthorization{}
	found, err := loadJSON(m.deps.Scoped, verifierKey(state), pending)
	_ = m.deps.Scoped.Delete(verifierKey(state))

	m.mu.Lock()
	delete(m.pendingStates, state)
	m.mu.Unlock()

	if err != nil || !found || pending.CodeVerifier == "" {
		return nil, false
	}
	return pending, true
}

// adoptStoredSession loads the persisted session and revalidates it against
// the auth service. Used to keep an existing login when a stale callback
// cannot be matched to an in-flight authorization.
func (m *Manager) adoptStoredSession(ctx context.Context) bool {
	restored := &Session{}
	found, err := loadJSON(m.deps.Durable, tokensKey, restored)
	if err != nil || !found || !restored.Valid() {
		return false
	}
	if _, err := m.deps.AuthService.Me(ctx, restored.AccessToken); err != nil {
		return false
	}

	snapshot := &users.Snapshot{}
	if ok, _ := loadJSON(m.deps.Durable, userKey, snapshot); !ok {
		snapshot = nil
	}
	if snapshot != nil && snapshot.Profile == nil {
		snapshot.Profile = m.loadProfile(snapshot.ID)
	}

	m.mu.Lock()
	m.session = restored
	m.user = snapshot
	m.status = StatusAuthenticated
	m.mu.Unlock()
	return true
}

// failCallback tears the session down after a failed callback and unblocks a
// legitimate retry of the same code.
func (m *Manager) failCallback(code string) {
	m.teardown()
	m.guard.Delete(code)
}

// teardown destroys the session and user snapshot, locally and durably.
// Per-user profile data is deliberately kept - it survives across logins.
func (m *Manager) teardown() {
	m.mu.Lock()
	states := m.pendingStates
	m.pendingStates = make(map[string]struct{})
	m.session = nil
	m.user = nil
	m.status = StatusUnauthenticated
	m.mu.Unlock()

	_ = m.deps.Durable.Delete(tokensKey)
	_ = m.deps.Durable.Delete(userKey)
	for state := range states {
		_ = m.deps.Scoped.Delete(verifierKey(state))
	}
	m.guard.Flush()
}

func (m *Manager) currentSession() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.session.Valid() {
		return nil
	}
	sess := *m.session
	return &sess
}

func (m *Manager) loadProfile(userID string) *users.CreatorProfile {
	if userID == "" {
		return nil
	}
	profile := &users.CreatorProfile{}
	if ok, _ := loadJSON(m.deps.Durable, profileKey(userID), profile); !ok {
		return nil
	}
	return profile
}

func newProfileID() string {
	return "profile-" + uuid.NewString()
}

func (m *Manager) setStatus(status Status) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}
