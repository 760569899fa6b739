package session

// Status is the manager's position in the per-process auth lifecycle.
// Unauthenticated is always re-enterable via a new redirect.
type Status string

const (
	// StatusUnauthenticated: no session; login or registration can start.
	StatusUnauthenticated Status = "unauthenticated"

	// StatusRedirecting: a redirect to the identity provider has been issued
	// and the process is waiting for the browser to come back.
	StatusRedirecting Status = "redirecting"

	// StatusCallbackPending: a callback arrived and its code exchange and
	// user sync are in flight.
	StatusCallbackPending Status = "callback_pending"

	// StatusAuthenticated: a valid session is loaded.
	StatusAuthenticated Status = "authenticated"
)
