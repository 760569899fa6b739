// Package idpfakes provides an in-memory identity-provider double for tests.
package idpfakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/creatoros/go-auth-client/idp"
)

var _ idp.Client = (*FakeClient)(nil)

// FakeClient records every grant call and serves canned token responses.
type FakeClient struct {
	mu sync.Mutex

	// ExchangeResponse is returned by Exchange when ExchangeErr is nil.
	ExchangeResponse *idp.TokenResponse
	ExchangeErr      error

	// RefreshResponse is returned by Refresh when RefreshErr is nil.
	RefreshResponse *idp.TokenResponse
	RefreshErr      error

	// PasswordResponse is returned by PasswordCredentials when PasswordErr is nil.
	PasswordResponse *idp.TokenResponse
	PasswordErr      error

	// LogoutURLErr forces LogoutURL to fail.
	LogoutURLErr error

	ExchangeCalls []ExchangeCall
	RefreshCalls  []string
	LoginURLs     []idp.AuthRequest
	RegisterURLs  []idp.AuthRequest
}

// ExchangeCall captures the arguments of one Exchange invocation.
type ExchangeCall struct {
	Code         string
	CodeVerifier string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) LoginURL(req idp.AuthRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginURLs = append(f.LoginURLs, req)
	return fmt.Sprintf("https://idp.test/auth?state=%s&code_challenge=%s", req.State, req.CodeChallenge), nil
}

func (f *FakeClient) RegisterURL(req idp.AuthRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RegisterURLs = append(f.RegisterURLs, req)
	return fmt.Sprintf("https://idp.test/registrations?state=%s&code_challenge=%s", req.State, req.CodeChallenge), nil
}

func (f *FakeClient) PasswordResetURL(emailHint string) (string, error) {
	return "https://idp.test/forgot-credentials?login_hint=" + emailHint, nil
}

func (f *FakeClient) LogoutURL(postLogoutRedirectURI string) (string, error) {
	if f.LogoutURLErr != nil {
		return "", f.LogoutURLErr
	}
	return "https://idp.test/logout?post_logout_redirect_uri=" + postLogoutRedirectURI, nil
}

func (f *FakeClient) Exchange(_ context.Context, code, codeVerifier string) (*idp.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExchangeCalls = append(f.ExchangeCalls, ExchangeCall{Code: code, CodeVerifier: codeVerifier})
	if f.ExchangeErr != nil {
		return nil, f.ExchangeErr
	}
	response := *f.ExchangeResponse
	return &response, nil
}

func (f *FakeClient) Refresh(_ context.Context, refreshToken string) (*idp.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls = append(f.RefreshCalls, refreshToken)
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	response := *f.RefreshResponse
	return &response, nil
}

func (f *FakeClient) PasswordCredentials(_ context.Context, _, _ string) (*idp.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PasswordErr != nil {
		return nil, f.PasswordErr
	}
	response := *f.PasswordResponse
	return &response, nil
}

// RefreshCallCount returns the number of Refresh invocations seen so far.
func (f *FakeClient) RefreshCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.RefreshCalls)
}

// ExchangeCallCount returns the number of Exchange invocations seen so far.
func (f *FakeClient) ExchangeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ExchangeCalls)
}
