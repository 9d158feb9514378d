// Package deviceflow implements the chat side of the OAuth 2.0 Device Authorization Grant (RFC 8628)
package deviceflow

import "context"

// Store defines the interface for pending session storage, keyed by chat id
type Store interface {
	// SaveSession stores a session, replacing any existing session for the same chat
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves the session for a chat or ErrSessionNotFound
	GetSession(ctx context.Context, chatID string) (*Session, error)

	// DeleteSession removes the session for a chat; deleting a missing session is not an error
	DeleteSession(ctx context.Context, chatID string) error

	// CheckHealth verifies the storage backend is healthy
	CheckHealth(ctx context.Context) error
}
