// Package storage defines the two key-value tiers the session layer writes to:
// a durable store that survives process restarts (tokens, user snapshot) and a
// session-scoped store cleared with the process (PKCE state, one-shot values).
package storage

import "errors"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// Store is a minimal key-value abstraction shared by both tiers.
// Records are opaque bytes; callers own the encoding. Invalid or partial
// records are a caller concern - a Store only reports presence.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}
