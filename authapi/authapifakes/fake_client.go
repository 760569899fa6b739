// Package authapifakes provides an in-memory auth-service double for tests.
package authapifakes

import (
	"context"
	"sync"

	"github.com/creatoros/go-auth-client/authapi"
)

var _ authapi.Client = (*FakeClient)(nil)

// FakeClient serves a canned user record and records the tokens it was shown.
type FakeClient struct {
	mu sync.Mutex

	// User is returned by Me and SyncUser when the matching error is nil.
	User *authapi.User

	MeErr     error
	SyncErr   error
	LogoutErr error

	MeTokens     []string
	SyncTokens   []string
	LogoutTokens []string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (f *FakeClient) Me(_ context.Context, accessToken string) (*authapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MeTokens = append(f.MeTokens, accessToken)
	if f.MeErr != nil {
		return nil, f.MeErr
	}
	user := *f.User
	return &user, nil
}

func (f *FakeClient) SyncUser(_ context.Context, accessToken string) (*authapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SyncTokens = append(f.SyncTokens, accessToken)
	if f.SyncErr != nil {
		return nil, f.SyncErr
	}
	user := *f.User
	return &user, nil
}

func (f *FakeClient) Logout(_ context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutTokens = append(f.LogoutTokens, accessToken)
	return f.LogoutErr
}
