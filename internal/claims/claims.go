// Package claims reads the display identity out of a Keycloak access token
package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken indicates the token payload could not be parsed as a claims object
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidSignature indicates signature or registered claim validation failed
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Asymmetric algorithms Keycloak signs access tokens with
var validMethods = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
}

// Identity is the user identity shown back in the chat
type Identity struct {
	SubjectID         string
	PreferredUsername string
}

// KeySet resolves verification keys by key id
type KeySet interface {
	Key(ctx context.Context, kid string) (any, error)
}

// Extractor parses access tokens into an Identity.
// Without a KeySet the payload is decoded unverified and is only fit for display.
type Extractor struct {
	keys   KeySet
	issuer string
}

// Option configures an Extractor
type Option func(*Extractor)

// WithKeySet enables signature verification against keys
func WithKeySet(keys KeySet) Option {
	return func(e *Extractor) {
		e.keys = keys
	}
}

// WithIssuer requires the iss claim to match when verifying
func WithIssuer(issuer string) Option {
	return func(e *Extractor) {
		e.issuer = issuer
	}
}

// NewExtractor creates an Extractor
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verifies reports whether tokens are signature checked
func (e *Extractor) Verifies() bool {
	return e.keys != nil
}

// Extract returns the subject and preferred username carried by accessToken
func (e *Extractor) Extract(ctx context.Context, accessToken string) (*Identity, error) {
	mc := jwt.MapClaims{}

	if e.keys == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(accessToken, mc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return identityFrom(mc), nil
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(validMethods)}
	if e.issuer != "" {
		opts = append(opts, jwt.WithIssuer(e.issuer))
	}

	_, err := jwt.ParseWithClaims(accessToken, mc, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return e.keys.Key(ctx, kid)
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return identityFrom(mc), nil
}

func identityFrom(mc jwt.MapClaims) *Identity {
	sub, _ := mc.GetSubject()
	username, _ := mc["preferred_username"].(string)
	return &Identity{
		SubjectID:         sub,
		PreferredUsername: username,
	}
}
