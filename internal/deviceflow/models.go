package deviceflow

import (
	"time"

	"github.com/wrale/keycloak-device-bot/internal/claims"
	"github.com/wrale/keycloak-device-bot/internal/oauth"
)

// Session is one outstanding device authorization attempt for a chat per RFC 8628 section 3.2
type Session struct {
	ChatID string `json:"chat_id"`

	// Provider issued fields
	DeviceCode              string `json:"device_code"` // Never shown to the user
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"` // Validity window in seconds as declared by the provider
	Interval                int    `json:"interval,omitempty"`

	// Local bookkeeping
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CheckResult is the outcome of a Check call that reached the provider
type CheckResult struct {
	Outcome oauth.Outcome

	// Identity is set on success when the access token could be read
	Identity *claims.Identity

	// IdentityErr records why the identity could not be read; the outcome stays a success
	IdentityErr error
}
