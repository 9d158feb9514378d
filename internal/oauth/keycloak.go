package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// Keycloak endpoint paths
	deviceAuthPath  = "/protocol/openid-connect/auth/device"
	tokenPath       = "/protocol/openid-connect/token"
	certsPath       = "/protocol/openid-connect/certs"
	healthCheckPath = "/.well-known/openid-configuration"

	// HTTP request timeouts
	defaultTimeout = 10 * time.Second

	// maxBodySize bounds provider responses
	maxBodySize = 1 << 20
)

// KeycloakProvider implements the Provider interface for Keycloak
type KeycloakProvider struct {
	client       *http.Client
	oauth        *oauth2.Config
	clientID     string
	clientSecret string
	realmURL     string
	tokenURL     string
	certsURL     string
	healthURL    string
}

// KeycloakConfig extends Config with Keycloak-specific settings
type KeycloakConfig struct {
	Config
	Realm string
}

// NewKeycloakProvider creates a new Keycloak provider
func NewKeycloakProvider(cfg KeycloakConfig) (*KeycloakProvider, error) {
	// Validate required fields
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Realm == "" {
		return nil, fmt.Errorf("realm is required")
	}

	// Clean and validate base URL
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	realmURL := fmt.Sprintf("%s/realms/%s", baseURL, url.PathEscape(cfg.Realm))
	tokenURL := realmURL + tokenPath

	return &KeycloakProvider{
		client: &http.Client{Timeout: timeout},
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				DeviceAuthURL: realmURL + deviceAuthPath,
				TokenURL:      tokenURL,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		realmURL:     realmURL,
		tokenURL:     tokenURL,
		certsURL:     realmURL + certsPath,
		healthURL:    realmURL + healthCheckPath,
	}, nil
}

// Issuer returns the realm issuer URL found in tokens minted by this realm
func (p *KeycloakProvider) Issuer() string {
	return p.realmURL
}

// CertsURL returns the realm's JWKS endpoint
func (p *KeycloakProvider) CertsURL() string {
	return p.certsURL
}

// HTTPClient returns the client used for all provider calls
func (p *KeycloakProvider) HTTPClient() *http.Client {
	return p.client
}

// RequestDeviceCode starts a device authorization per RFC 8628 section 3.1
func (p *KeycloakProvider) RequestDeviceCode(ctx context.Context) (*DeviceAuthorization, error) {
	// x/oauth2 picks the HTTP client up from the context
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	var opts []oauth2.AuthCodeOption
	if p.clientSecret != "" {
		opts = append(opts, oauth2.SetAuthURLParam("client_secret", p.clientSecret))
	}

	da, err := p.oauth.DeviceAuth(ctx, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		var urlErr *url.Error
		switch {
		case errors.As(err, &retrieveErr):
			return nil, fmt.Errorf("%w: device authorization rejected: %s", ErrProviderError, retrieveErr.Response.Status)
		case errors.As(err, &urlErr):
			return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
		}
	}

	if da.DeviceCode == "" || da.UserCode == "" {
		return nil, fmt.Errorf("%w: response missing device_code or user_code", ErrProviderError)
	}

	// Zero when the provider omits expires_in; callers apply their own default
	var expiresIn int
	if !da.Expiry.IsZero() {
		expiresIn = int(math.Round(time.Until(da.Expiry).Seconds()))
	}

	return &DeviceAuthorization{
		DeviceCode:              da.DeviceCode,
		UserCode:                da.UserCode,
		VerificationURI:         da.VerificationURI,
		VerificationURIComplete: da.VerificationURIComplete,
		ExpiresIn:               expiresIn,
		Interval:                int(da.Interval),
	}, nil
}

// tokenResponse covers both the success and the error shape of the token endpoint
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeDeviceCode polls the token endpoint once per RFC 8628 section 3.4
func (p *KeycloakProvider) ExchangeDeviceCode(ctx context.Context, deviceCode string) (*Outcome, error) {
	// Prepare token request
	data := url.Values{
		"grant_type":  {DeviceGrantType},
		"device_code": {deviceCode},
		"client_id":   {p.clientID},
	}
	if p.clientSecret != "" {
		data.Set("client_secret", p.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	// Send request and handle response
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading token response: %v", ErrExchangeUnreachable, err)
	}

	outcome, err := classifyTokenResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: token endpoint returned %s: %v", ErrProviderError, resp.Status, err)
	}
	return outcome, nil
}

// classifyTokenResponse maps a token endpoint body onto an Outcome.
// The HTTP status is not consulted; Keycloak reports pending and terminal errors with 400.
func classifyTokenResponse(body []byte) (*Outcome, error) {
	var tr *tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if tr == nil {
		return nil, errors.New("empty token response")
	}

	switch {
	case tr.AccessToken != "":
		return &Outcome{Kind: OutcomeSuccess, AccessToken: tr.AccessToken}, nil
	case tr.Error == ErrorAuthorizationPending:
		return &Outcome{Kind: OutcomePending}, nil
	default:
		desc := tr.ErrorDescription
		if desc == "" {
			desc = tr.Error
		}
		return &Outcome{
			Kind:             OutcomeTerminal,
			ErrorCode:        tr.Error,
			ErrorDescription: desc,
		}, nil
	}
}

// CheckHealth verifies the provider is accessible
func (p *KeycloakProvider) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return fmt.Errorf("creating health check request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %s", ErrProviderError, resp.Status)
	}

	return nil
}
