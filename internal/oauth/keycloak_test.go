package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	testRealm        = "test"
	testClientID     = "bot-client"
	testClientSecret = "bot-secret"
)

// newTestProvider starts a fake Keycloak realm serving the given handlers
func newTestProvider(t *testing.T, device, token http.HandlerFunc) (*KeycloakProvider, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	if device != nil {
		mux.HandleFunc("/realms/"+testRealm+deviceAuthPath, device)
	}
	if token != nil {
		mux.HandleFunc("/realms/"+testRealm+tokenPath, token)
	}
	mux.HandleFunc("/realms/"+testRealm+healthCheckPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"issuer":"x"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := NewKeycloakProvider(KeycloakConfig{
		Config: Config{
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			BaseURL:      srv.URL + "/",
		},
		Realm: testRealm,
	})
	if err != nil {
		t.Fatalf("NewKeycloakProvider() error = %v", err)
	}
	return p, srv
}

func writeBody(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestNewKeycloakProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     KeycloakConfig
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  KeycloakConfig{Config: Config{ClientID: "c", BaseURL: "https://idp"}, Realm: "r"},
		},
		{
			name:    "missing client id",
			cfg:     KeycloakConfig{Config: Config{BaseURL: "https://idp"}, Realm: "r"},
			wantErr: true,
		},
		{
			name:    "missing base url",
			cfg:     KeycloakConfig{Config: Config{ClientID: "c"}, Realm: "r"},
			wantErr: true,
		},
		{
			name:    "missing realm",
			cfg:     KeycloakConfig{Config: Config{ClientID: "c", BaseURL: "https://idp"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewKeycloakProvider(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewKeycloakProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if got, want := p.CertsURL(), "https://idp/realms/r/protocol/openid-connect/certs"; got != want {
					t.Errorf("CertsURL() = %q, want %q", got, want)
				}
				if got, want := p.Issuer(), "https://idp/realms/r"; got != want {
					t.Errorf("Issuer() = %q, want %q", got, want)
				}
			}
		})
	}
}

func TestRequestDeviceCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotForm map[string]string
		device := func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Errorf("ParseForm() error = %v", err)
			}
			gotForm = map[string]string{
				"client_id":     r.PostForm.Get("client_id"),
				"client_secret": r.PostForm.Get("client_secret"),
			}
			writeBody(http.StatusOK, `{
				"device_code": "D1",
				"user_code": "U1",
				"verification_uri": "https://idp/verify",
				"verification_uri_complete": "https://idp/verify?u=U1",
				"expires_in": 600,
				"interval": 5
			}`)(w, r)
		}
		p, _ := newTestProvider(t, device, nil)

		got, err := p.RequestDeviceCode(context.Background())
		if err != nil {
			t.Fatalf("RequestDeviceCode() error = %v", err)
		}

		want := &DeviceAuthorization{
			DeviceCode:              "D1",
			UserCode:                "U1",
			VerificationURI:         "https://idp/verify",
			VerificationURIComplete: "https://idp/verify?u=U1",
			ExpiresIn:               600,
			Interval:                5,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("RequestDeviceCode() mismatch (-want +got):\n%s", diff)
		}

		wantForm := map[string]string{"client_id": testClientID, "client_secret": testClientSecret}
		if diff := cmp.Diff(wantForm, gotForm); diff != "" {
			t.Errorf("device request form mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing expires_in", func(t *testing.T) {
		p, _ := newTestProvider(t, writeBody(http.StatusOK, `{"device_code":"D1","user_code":"U1"}`), nil)

		got, err := p.RequestDeviceCode(context.Background())
		if err != nil {
			t.Fatalf("RequestDeviceCode() error = %v", err)
		}
		if got.ExpiresIn != 0 {
			t.Errorf("ExpiresIn = %d, want 0 when the provider declares none", got.ExpiresIn)
		}
	})

	errorTests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:    "missing user code",
			handler: writeBody(http.StatusOK, `{"device_code":"D1"}`),
			wantErr: ErrProviderError,
		},
		{
			name:    "missing device code",
			handler: writeBody(http.StatusOK, `{"user_code":"U1"}`),
			wantErr: ErrProviderError,
		},
		{
			name:    "rejected client",
			handler: writeBody(http.StatusUnauthorized, `{"error":"unauthorized_client"}`),
			wantErr: ErrProviderError,
		},
		{
			name:    "not json",
			handler: writeBody(http.StatusOK, `<html>oops</html>`),
			wantErr: ErrProviderError,
		},
	}

	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProvider(t, tt.handler, nil)
			_, err := p.RequestDeviceCode(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RequestDeviceCode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		p, srv := newTestProvider(t, writeBody(http.StatusOK, `{}`), nil)
		srv.Close()

		_, err := p.RequestDeviceCode(context.Background())
		if !errors.Is(err, ErrProviderUnreachable) {
			t.Errorf("RequestDeviceCode() error = %v, want %v", err, ErrProviderUnreachable)
		}
	})
}

func TestExchangeDeviceCode(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantOutcome *Outcome
		wantErr     error
	}{
		{
			name:        "success",
			status:      http.StatusOK,
			body:        `{"access_token":"tok","token_type":"Bearer","expires_in":300}`,
			wantOutcome: &Outcome{Kind: OutcomeSuccess, AccessToken: "tok"},
		},
		{
			name:        "pending",
			status:      http.StatusBadRequest,
			body:        `{"error":"authorization_pending","error_description":"The authorization request is still pending"}`,
			wantOutcome: &Outcome{Kind: OutcomePending},
		},
		{
			name:   "expired",
			status: http.StatusBadRequest,
			body:   `{"error":"expired_token","error_description":"token expired"}`,
			wantOutcome: &Outcome{
				Kind:             OutcomeTerminal,
				ErrorCode:        "expired_token",
				ErrorDescription: "token expired",
			},
		},
		{
			name:   "denied without description",
			status: http.StatusBadRequest,
			body:   `{"error":"access_denied"}`,
			wantOutcome: &Outcome{
				Kind:             OutcomeTerminal,
				ErrorCode:        "access_denied",
				ErrorDescription: "access_denied",
			},
		},
		{
			name:   "slow down is terminal",
			status: http.StatusBadRequest,
			body:   `{"error":"slow_down"}`,
			wantOutcome: &Outcome{
				Kind:             OutcomeTerminal,
				ErrorCode:        "slow_down",
				ErrorDescription: "slow_down",
			},
		},
		{
			name:   "access token wins over error",
			status: http.StatusOK,
			body:   `{"access_token":"tok","error":"authorization_pending"}`,
			wantOutcome: &Outcome{
				Kind:        OutcomeSuccess,
				AccessToken: "tok",
			},
		},
		{
			name:    "gateway error page",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: ErrProviderError,
		},
		{
			name:    "null body",
			status:  http.StatusOK,
			body:    `null`,
			wantErr: ErrProviderError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotForm map[string]string
			token := func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Errorf("ParseForm() error = %v", err)
				}
				gotForm = map[string]string{
					"grant_type":    r.PostForm.Get("grant_type"),
					"device_code":   r.PostForm.Get("device_code"),
					"client_id":     r.PostForm.Get("client_id"),
					"client_secret": r.PostForm.Get("client_secret"),
				}
				writeBody(tt.status, tt.body)(w, r)
			}
			p, _ := newTestProvider(t, nil, token)

			got, err := p.ExchangeDeviceCode(context.Background(), "D1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ExchangeDeviceCode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExchangeDeviceCode() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantOutcome, got); diff != "" {
				t.Errorf("ExchangeDeviceCode() mismatch (-want +got):\n%s", diff)
			}

			wantForm := map[string]string{
				"grant_type":    DeviceGrantType,
				"device_code":   "D1",
				"client_id":     testClientID,
				"client_secret": testClientSecret,
			}
			if diff := cmp.Diff(wantForm, gotForm); diff != "" {
				t.Errorf("token request form mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		p, srv := newTestProvider(t, nil, writeBody(http.StatusOK, `{}`))
		srv.Close()

		_, err := p.ExchangeDeviceCode(context.Background(), "D1")
		if !errors.Is(err, ErrExchangeUnreachable) {
			t.Errorf("ExchangeDeviceCode() error = %v, want %v", err, ErrExchangeUnreachable)
		}
	})
}

func TestCheckHealth(t *testing.T) {
	p, srv := newTestProvider(t, nil, nil)
	if err := p.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth() error = %v", err)
	}

	srv.Close()
	if err := p.CheckHealth(context.Background()); !errors.Is(err, ErrProviderUnreachable) {
		t.Errorf("CheckHealth() error = %v, want %v", err, ErrProviderUnreachable)
	}
}

func TestOutcomeKindString(t *testing.T) {
	for kind, want := range map[OutcomeKind]string{
		OutcomePending:  "pending",
		OutcomeSuccess:  "success",
		OutcomeTerminal: "terminal_error",
		OutcomeKind(42): "unknown",
	} {
		if got := kind.String(); got != want {
			t.Errorf("OutcomeKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
