package deviceflow

import "errors"

// Common errors that may occur during the device authorization flow
var (
	// ErrSessionNotFound is returned by stores when no session exists for a chat
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoSession indicates a check was requested with nothing pending for the chat
	ErrNoSession = errors.New("no pending authentication")

	// ErrSessionExpired indicates a session was saved after its expiry
	ErrSessionExpired = errors.New("session has already expired")
)
