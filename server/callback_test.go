package server_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/creatoros/go-auth-client/server"
)

type recordingHandler struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (h *recordingHandler) HandleRedirectCallback(_ context.Context, callbackURL string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.urls = append(h.urls, callbackURL)
	return h.err
}

func (h *recordingHandler) calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.urls...)
}

func startServer(t *testing.T, handler server.CallbackHandler) (*server.CallbackServer, string) {
	t.Helper()
	// Port 0 lets the OS pick a free port; Addr() reports the bound one.
	s, err := server.NewCallbackServer("http://127.0.0.1:0/login", handler)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	return s, fmt.Sprintf("http://%s/login", s.Addr())
}

func TestNewCallbackServerValidation(t *testing.T) {
	_, err := server.NewCallbackServer("http://127.0.0.1:8765/login", nil)
	require.ErrorContains(t, err, "handler is required")

	_, err = server.NewCallbackServer("not-a-uri", &recordingHandler{})
	require.ErrorContains(t, err, "no host")
}

func TestCallbackServerHandlesCallback(t *testing.T) {
	handler := &recordingHandler{}
	s, base := startServer(t, handler)

	resp, err := http.Get(base + "?code=abc&state=xyz&session_state=ss")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The browser ends up on the stripped URL: no single-use parameters left
	// to re-deliver on a reload.
	require.Empty(t, resp.Request.URL.Query().Get("code"))
	require.Empty(t, resp.Request.URL.Query().Get("state"))
	require.Empty(t, resp.Request.URL.Query().Get("session_state"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Signed in")

	calls := handler.calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0], "code=abc")
	require.Contains(t, calls[0], "state=xyz")

	// Reloading the stripped URL renders the outcome without another
	// callback invocation.
	reload, err := http.Get(base)
	require.NoError(t, err)
	defer reload.Body.Close()
	require.Equal(t, http.StatusOK, reload.StatusCode)
	require.Len(t, handler.calls(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestCallbackServerReportsHandlerFailure(t *testing.T) {
	handler := &recordingHandler{err: errors.New("state mismatch")}
	s, base := startServer(t, handler)

	resp, err := http.Get(base + "?code=abc&state=bad")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, resp.Request.URL.Query().Get("code"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Sign-in failed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.ErrorContains(t, s.Wait(ctx), "state mismatch")
}

func TestCallbackServerParameterFreeVisitBeforeCallback(t *testing.T) {
	handler := &recordingHandler{}
	_, base := startServer(t, handler)

	resp, err := http.Get(base)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Waiting")
	require.Empty(t, handler.calls())
}

func TestCallbackServerWaitTimeout(t *testing.T) {
	s, _ := startServer(t, &recordingHandler{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}
