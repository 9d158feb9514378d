package deviceflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wrale/keycloak-device-bot/internal/claims"
	"github.com/wrale/keycloak-device-bot/internal/oauth"
)

// DefaultExpiry is the session lifetime assumed when the provider declares none
const DefaultExpiry = 10 * time.Minute

// IdentityExtractor reads the display identity from an access token
type IdentityExtractor interface {
	Extract(ctx context.Context, accessToken string) (*claims.Identity, error)
}

// Flow drives the per-chat session lifecycle:
// NoSession -> Pending on Start, Pending -> NoSession on a success or terminal Check.
type Flow struct {
	store         Store
	provider      oauth.Provider
	extractor     IdentityExtractor
	locks         *keyedMutex
	defaultExpiry time.Duration
	logger        *zap.Logger
	metrics       *Metrics
}

// NewFlow creates a new device flow manager with provided options
func NewFlow(store Store, provider oauth.Provider, extractor IdentityExtractor, opts ...Option) *Flow {
	f := &Flow{
		store:         store,
		provider:      provider,
		extractor:     extractor,
		locks:         newKeyedMutex(),
		defaultExpiry: DefaultExpiry,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	if f.metrics == nil {
		f.metrics = NewMetrics(nil)
	}
	if f.defaultExpiry <= 0 {
		f.defaultExpiry = DefaultExpiry
	}

	return f
}

// Start requests a new device authorization and stores it for the chat,
// superseding any session already pending there. Nothing is stored on failure.
func (f *Flow) Start(ctx context.Context, chatID string) (*Session, error) {
	unlock := f.locks.Lock(chatID)
	defer unlock()

	logger := f.logger.With(zap.String("chat_id", chatID))

	// Provider and store calls run to completion or timeout even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	da, err := f.provider.RequestDeviceCode(ctx)
	if err != nil {
		f.metrics.startFailures.Inc()
		logger.Warn("device authorization request failed", zap.Error(err))
		return nil, fmt.Errorf("requesting device code: %w", err)
	}

	now := time.Now()
	lifetime := time.Duration(da.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = f.defaultExpiry
	}

	session := &Session{
		ChatID:                  chatID,
		DeviceCode:              da.DeviceCode,
		UserCode:                da.UserCode,
		VerificationURI:         da.VerificationURI,
		VerificationURIComplete: da.VerificationURIComplete,
		ExpiresIn:               da.ExpiresIn,
		Interval:                da.Interval,
		CreatedAt:               now,
		ExpiresAt:               now.Add(lifetime),
	}

	if err := f.store.SaveSession(ctx, session); err != nil {
		f.metrics.startFailures.Inc()
		logger.Error("saving session failed", zap.Error(err))
		return nil, fmt.Errorf("saving session: %w", err)
	}

	f.metrics.started.Inc()
	logger.Info("device authorization started",
		zap.String("user_code", session.UserCode),
		zap.Time("expires_at", session.ExpiresAt),
	)

	return session, nil
}

// Check exchanges the chat's pending device code once.
// Pending leaves the session untouched; success and terminal errors remove it.
// Transport failures return an error and also leave the session in place.
func (f *Flow) Check(ctx context.Context, chatID string) (*CheckResult, error) {
	unlock := f.locks.Lock(chatID)
	defer unlock()

	logger := f.logger.With(zap.String("chat_id", chatID))
	ctx = context.WithoutCancel(ctx)

	session, err := f.store.GetSession(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			f.metrics.outcomes.WithLabelValues(outcomeNoSession).Inc()
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	outcome, err := f.provider.ExchangeDeviceCode(ctx, session.DeviceCode)
	if err != nil {
		f.metrics.outcomes.WithLabelValues(outcomeUnreachable).Inc()
		logger.Warn("token exchange failed, keeping session", zap.Error(err))
		return nil, fmt.Errorf("exchanging device code: %w", err)
	}

	f.metrics.outcomes.WithLabelValues(outcome.Kind.String()).Inc()
	result := &CheckResult{Outcome: *outcome}

	switch outcome.Kind {
	case oauth.OutcomePending:
		logger.Debug("authorization pending")
		return result, nil

	case oauth.OutcomeSuccess:
		identity, err := f.extractor.Extract(ctx, outcome.AccessToken)
		if err != nil {
			logger.Warn("reading identity from access token failed", zap.Error(err))
			result.IdentityErr = err
		} else {
			result.Identity = identity
			logger.Info("device authorization completed",
				zap.String("subject", identity.SubjectID),
				zap.String("username", identity.PreferredUsername),
			)
		}

	default:
		logger.Info("device authorization failed",
			zap.String("error", outcome.ErrorCode),
			zap.String("error_description", outcome.ErrorDescription),
		)
	}

	// Both success and terminal errors are conclusive
	if err := f.store.DeleteSession(ctx, chatID); err != nil {
		logger.Error("removing session failed", zap.Error(err))
	}

	return result, nil
}

// CheckHealth verifies the store and the provider are healthy
func (f *Flow) CheckHealth(ctx context.Context) error {
	if err := f.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	if err := f.provider.CheckHealth(ctx); err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}
	return nil
}
