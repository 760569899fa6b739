// Package server runs the loopback HTTP endpoint the identity provider
// redirects back to after an authorization round trip.
package server

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// CallbackHandler completes the authorization-code flow for a redirect URL.
// *session.Manager satisfies it.
type CallbackHandler interface {
	HandleRedirectCallback(ctx context.Context, callbackURL string) error
}

// CallbackServer serves exactly one authorization callback on the loopback
// interface and then shuts down. The listen address and path come from the
// registered redirect URI, which must point at localhost.
type CallbackServer struct {
	addr     string
	path     string
	handler  CallbackHandler
	logger   zerolog.Logger
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
	done     chan error

	mu      sync.Mutex
	handled bool
	outcome error
}

// CallbackOption configures optional CallbackServer behaviour.
type CallbackOption func(*CallbackServer)

// WithCallbackLogger attaches a logger; the default discards everything.
func WithCallbackLogger(logger zerolog.Logger) CallbackOption {
	return func(s *CallbackServer) {
		s.logger = logger
	}
}

// NewCallbackServer builds a server bound to redirectURI's host, port and
// path.
func NewCallbackServer(redirectURI string, handler CallbackHandler, options ...CallbackOption) (*CallbackServer, error) {
	if handler == nil {
		return nil, errors.New("[NewCallbackServer] callback handler is required")
	}
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return nil, errors.Wrap(err, "[NewCallbackServer] parse redirect URI")
	}
	if parsed.Host == "" {
		return nil, errors.Errorf("[NewCallbackServer] redirect URI %q has no host", redirectURI)
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	s := &CallbackServer{
		addr:    parsed.Host,
		path:    path,
		handler: handler,
		logger:  zerolog.Nop(),
		mux:     http.NewServeMux(),
		done:    make(chan error, 1),
	}
	for _, opt := range options {
		opt(s)
	}
	s.mux.HandleFunc("GET "+s.path, s.callbackHandler())
	s.server = &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	return s, nil
}

// Start binds the listener and begins serving in the background. It returns
// once the port is bound, so the authorization redirect can be opened without
// racing the listener.
func (s *CallbackServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "[CallbackServer Start] listen on %s", s.addr)
	}
	s.listener = listener
	s.addr = listener.Addr().String()
	s.logger.Debug().Str("addr", s.addr).Str("path", s.path).Msg("callback server listening")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.done <- errors.Wrap(err, "[CallbackServer] serve")
		}
	}()
	return nil
}

// Addr returns the bound listen address. Only meaningful after Start, which
// resolves a ":0" port to the one the OS assigned.
func (s *CallbackServer) Addr() string {
	return s.addr
}

// Wait blocks until the callback has been handled or ctx expires, then shuts
// the server down. The returned error is the callback handler's outcome.
func (s *CallbackServer) Wait(ctx context.Context) error {
	var result error
	select {
	case result = <-s.done:
	case <-ctx.Done():
		result = errors.Wrap(ctx.Err(), "[CallbackServer Wait]")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("callback server shutdown")
	}
	return result
}

// callbackHandler completes the flow for requests carrying authorization
// parameters and redirects to the stripped URL, so the visible address never
// holds the single-use code and a reload cannot re-deliver it. Requests
// without parameters render the stored outcome.
func (s *CallbackServer) callbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callbackURL := "http://" + s.addr + r.URL.String()
		if !IsCallback(callbackURL) {
			s.renderOutcome(w)
			return
		}

		err := s.handler.HandleRedirectCallback(r.Context(), callbackURL)
		if err != nil {
			s.logger.Error().Err(err).Msg("callback handling failed")
		}

		s.mu.Lock()
		s.handled = true
		s.outcome = err
		s.mu.Unlock()

		// First delivery wins; duplicate hits just see the outcome page.
		select {
		case s.done <- err:
		default:
		}

		cleaned, stripErr := StripOAuthParams(callbackURL)
		if stripErr != nil {
			cleaned = "http://" + s.addr + s.path
		}
		http.Redirect(w, r, cleaned, http.StatusSeeOther)
	}
}

func (s *CallbackServer) renderOutcome(w http.ResponseWriter) {
	s.mu.Lock()
	handled, outcome := s.handled, s.outcome
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case !handled:
		_, _ = w.Write([]byte(pendingPage))
	case outcome != nil:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(failurePage))
	default:
		_, _ = w.Write([]byte(successPage))
	}
}

const pendingPage = `<!DOCTYPE html>
<html><head><title>Signing in</title></head>
<body><h1>Signing in</h1><p>Waiting for the identity provider to redirect back.</p></body></html>`

const successPage = `<!DOCTYPE html>
<html><head><title>Signed in</title></head>
<body><h1>Signed in</h1><p>You can close this window and return to the application.</p></body></html>`

const failurePage = `<!DOCTYPE html>
<html><head><title>Sign-in failed</title></head>
<body><h1>Sign-in failed</h1><p>Close this window and try again from the application.</p></body></html>`
