// Package oauth provides the Keycloak side of the OAuth2 device authorization grant
package oauth

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by providers
var (
	// ErrProviderUnreachable indicates a transport failure during the device authorization request
	ErrProviderUnreachable = errors.New("oauth provider unreachable")

	// ErrProviderError indicates a malformed or rejecting response to a well-formed request
	ErrProviderError = errors.New("oauth provider error")

	// ErrExchangeUnreachable indicates a transport failure while polling the token endpoint
	ErrExchangeUnreachable = errors.New("token endpoint unreachable")
)

// DeviceGrantType is the grant_type used when exchanging a device code per RFC 8628 section 3.4
const DeviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// ErrorAuthorizationPending is the only token endpoint error that keeps a session alive
const ErrorAuthorizationPending = "authorization_pending"

// DeviceAuthorization is the provider's answer to a device authorization request per RFC 8628 section 3.2
type DeviceAuthorization struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int // Validity window in seconds
	Interval                int // Poll interval in seconds
}

// OutcomeKind tags the result of a single token exchange
type OutcomeKind int

const (
	// OutcomePending means the user has not finished authenticating yet
	OutcomePending OutcomeKind = iota
	// OutcomeSuccess means the provider issued an access token
	OutcomeSuccess
	// OutcomeTerminal means the provider reported a definitive failure
	OutcomeTerminal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeTerminal:
		return "terminal_error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one token exchange attempt
type Outcome struct {
	Kind             OutcomeKind
	AccessToken      string // Set for OutcomeSuccess
	ErrorCode        string // Set for OutcomeTerminal
	ErrorDescription string // Set for OutcomeTerminal
}

// Provider defines the identity provider operations the device flow depends on
type Provider interface {
	// RequestDeviceCode starts a new device authorization
	RequestDeviceCode(ctx context.Context) (*DeviceAuthorization, error)

	// ExchangeDeviceCode polls the token endpoint once for a device code
	ExchangeDeviceCode(ctx context.Context, deviceCode string) (*Outcome, error)

	// CheckHealth verifies the provider is accessible
	CheckHealth(ctx context.Context) error
}

// Config holds common OAuth provider configuration
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
}
