// Package telegram delivers chat notices and receives updates over the Telegram Bot API
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wrale/keycloak-device-bot/internal/chat"
)

// DefaultBaseURL is the public Bot API endpoint
const DefaultBaseURL = "https://api.telegram.org"

// ErrUnauthorized is returned when the Bot API rejects the bot token
var ErrUnauthorized = errors.New("telegram: bot token rejected")

// allowedUpdates limits delivery to what the bot handles
var allowedUpdates = []string{"message", "callback_query"}

// Client adapts a tgbotapi.BotAPI to chat.Messenger
type Client struct {
	api *tgbotapi.BotAPI
}

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*clientConfig)

// WithBaseURL points the client at another Bot API server
func WithBaseURL(baseURL string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for API calls
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// NewClient creates a Bot API client for token. The token is checked with getMe.
func NewClient(token string, opts ...ClientOption) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}

	cfg := clientConfig{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, cfg.baseURL+"/bot%s/%s", cfg.httpClient)
	if err != nil {
		return nil, wrapError("getMe", err)
	}
	return &Client{api: api}, nil
}

// Username returns the bot's username as reported by getMe
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Send posts notice to chatID. An image goes out as a photo ahead of the text,
// and the button becomes a one-button inline keyboard.
func (c *Client) Send(ctx context.Context, chatID string, notice chat.Notice) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(notice.Image) > 0 {
		photo := tgbotapi.NewPhoto(id, tgbotapi.FileBytes{Name: "qrcode.png", Bytes: notice.Image})
		if _, err := c.api.Send(photo); err != nil {
			return wrapError("sendPhoto", err)
		}
	}

	msg := tgbotapi.NewMessage(id, notice.Text)
	if notice.Button != nil {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(notice.Button.Text, notice.Button.Tag),
			),
		)
	}
	if _, err := c.api.Send(msg); err != nil {
		return wrapError("sendMessage", err)
	}
	return nil
}

// Acknowledge answers a callback query
func (c *Client) Acknowledge(ctx context.Context, interactionID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb := tgbotapi.NewCallback(interactionID, text)
	cb.ShowAlert = alert
	if _, err := c.api.Request(cb); err != nil {
		return wrapError("answerCallbackQuery", err)
	}
	return nil
}

// DeleteWebhook removes any webhook so getUpdates can be used
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return wrapError("deleteWebhook", err)
	}
	return nil
}

// Updates starts long polling with the given server-side timeout.
// Delivery continues until StopUpdates is called.
func (c *Client) Updates(timeout time.Duration) tgbotapi.UpdatesChannel {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = int(timeout.Seconds())
	cfg.AllowedUpdates = allowedUpdates
	return c.api.GetUpdatesChan(cfg)
}

// StopUpdates ends the polling started by Updates
func (c *Client) StopUpdates() {
	c.api.StopReceivingUpdates()
}

// ParseUpdate decodes an update delivered to a webhook
func (c *Client) ParseUpdate(r *http.Request) (*tgbotapi.Update, error) {
	return c.api.HandleUpdate(r)
}

func wrapError(method string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	// The request URL carries the token; keep it out of the error
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}
