package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/wrale/keycloak-device-bot/cmd/keycloak-device-bot/handlers/common"
	"github.com/wrale/keycloak-device-bot/internal/telegram"
)

// SecretHeader carries the secret token registered with setWebhook
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateSize = 1 << 20

// UpdateParser decodes the update carried by a webhook request
type UpdateParser interface {
	ParseUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// Handler receives Telegram webhook updates
type Handler struct {
	secret []byte
	parser UpdateParser
	handle telegram.UpdateHandler
	logger *zap.Logger
}

// New creates a webhook handler accepting only requests carrying secret
func New(secret string, parser UpdateParser, handle telegram.UpdateHandler, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		secret: []byte(secret),
		parser: parser,
		handle: handle,
		logger: logger,
	}
}

// ServeHTTP handles one update delivery
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "POST method required")
		return
	}

	got := []byte(r.Header.Get(SecretHeader))
	if len(h.secret) == 0 || subtle.ConstantTimeCompare(got, h.secret) != 1 {
		h.logger.Warn("rejected webhook request", zap.String("remote_addr", r.RemoteAddr))
		common.WriteError(w, http.StatusUnauthorized, "unauthorized", "secret token mismatch")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateSize)
	u, err := h.parser.ParseUpdate(r)
	if err != nil {
		// Telegram redelivers on non-2xx; a body it cannot parse will never succeed
		h.logger.Warn("discarding undecodable update", zap.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	h.handle(context.WithoutCancel(r.Context()), *u)
	w.WriteHeader(http.StatusOK)
}
