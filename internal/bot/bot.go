// Package bot binds chat events to the device authorization flow
package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wrale/keycloak-device-bot/internal/chat"
	"github.com/wrale/keycloak-device-bot/internal/deviceflow"
	"github.com/wrale/keycloak-device-bot/internal/oauth"
	"github.com/wrale/keycloak-device-bot/internal/templates"
)

// CheckButtonText labels the control attached to the instructions
const CheckButtonText = "I've completed authentication"

// Flow is the part of deviceflow.Flow the bot drives
type Flow interface {
	Start(ctx context.Context, chatID string) (*deviceflow.Session, error)
	Check(ctx context.Context, chatID string) (*deviceflow.CheckResult, error)
}

// Bot turns start and check events into flow transitions and notices
type Bot struct {
	flow      Flow
	messenger chat.Messenger
	templates *templates.Templates
	logger    *zap.Logger
	sendQR    bool
}

// Option configures a Bot
type Option func(*Bot)

// WithLogger sets the bot logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithQRCode attaches a QR code of the verification URI to the instructions
func WithQRCode(enabled bool) Option {
	return func(b *Bot) {
		b.sendQR = enabled
	}
}

// New creates a Bot
func New(flow Flow, messenger chat.Messenger, tmpl *templates.Templates, opts ...Option) *Bot {
	b := &Bot{
		flow:      flow,
		messenger: messenger,
		templates: tmpl,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Register installs the bot's handlers on d
func (b *Bot) Register(d *chat.Dispatcher) {
	d.Handle(chat.EventStart, b.HandleStart)
	d.Handle(chat.EventCheck, b.HandleCheck)
}

// HandleStart begins authentication and sends the instructions
func (b *Bot) HandleStart(ctx context.Context, event chat.Event) error {
	logger := b.logger.With(zap.String("chat_id", event.ChatID), zap.Stringer("event_id", event.ID))

	session, err := b.flow.Start(ctx, event.ChatID)
	if err != nil {
		logger.Warn("start failed", zap.Error(err))
		text, rerr := b.templates.RenderStartFailed()
		if rerr != nil {
			return rerr
		}
		return b.send(ctx, event.ChatID, chat.Notice{Text: text})
	}

	uri := session.VerificationURIComplete
	if uri == "" {
		uri = session.VerificationURI
	}

	expiresIn := session.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int(session.ExpiresAt.Sub(session.CreatedAt).Seconds())
	}

	text, err := b.templates.RenderInstructions(templates.InstructionsData{
		VerificationURI: uri,
		UserCode:        session.UserCode,
		ExpiresIn:       expiresIn,
	})
	if err != nil {
		return err
	}

	notice := chat.Notice{
		Text:   text,
		Button: &chat.Button{Text: CheckButtonText, Tag: chat.CheckTag},
	}

	if b.sendQR && uri != "" {
		img, err := b.templates.GenerateQRCode(uri)
		if err != nil {
			logger.Warn("generating QR code failed", zap.Error(err))
		} else {
			notice.Image = img
		}
	}

	return b.send(ctx, event.ChatID, notice)
}

// reply is the single notice produced by a check
type reply struct {
	message string // sent to the chat when set
	ack     string // shown on the acknowledgement when set
	alert   bool
}

// HandleCheck checks the pending authentication and acknowledges the interaction exactly once
func (b *Bot) HandleCheck(ctx context.Context, event chat.Event) error {
	logger := b.logger.With(zap.String("chat_id", event.ChatID), zap.Stringer("event_id", event.ID))

	r, err := b.checkReply(ctx, event.ChatID)
	if err != nil {
		logger.Error("rendering check notice failed", zap.Error(err))
	}

	var sendErr error
	if r.message != "" {
		sendErr = b.send(ctx, event.ChatID, chat.Notice{Text: r.message})
	}

	var ackErr error
	if event.InteractionID != "" {
		if ackErr = b.messenger.Acknowledge(ctx, event.InteractionID, r.ack, r.alert); ackErr != nil {
			ackErr = fmt.Errorf("acknowledging interaction: %w", ackErr)
		}
	}

	return errors.Join(err, sendErr, ackErr)
}

func (b *Bot) checkReply(ctx context.Context, chatID string) (reply, error) {
	if chatID == "" {
		text, err := b.templates.RenderNoSession()
		return reply{ack: text}, err
	}

	result, err := b.flow.Check(ctx, chatID)

	switch {
	case errors.Is(err, deviceflow.ErrNoSession):
		text, err := b.templates.RenderNoSession()
		return reply{ack: text}, err

	case err != nil:
		b.logger.Warn("check failed", zap.String("chat_id", chatID), zap.Error(err))
		text, err := b.templates.RenderCheckFailed()
		return reply{message: text}, err
	}

	switch result.Outcome.Kind {
	case oauth.OutcomePending:
		text, err := b.templates.RenderPending()
		return reply{ack: text, alert: true}, err

	case oauth.OutcomeSuccess:
		var data templates.SuccessData
		if result.Identity != nil {
			data.Username = result.Identity.PreferredUsername
			data.SubjectID = result.Identity.SubjectID
		}
		text, err := b.templates.RenderSuccess(data)
		return reply{message: text}, err

	default:
		desc := result.Outcome.ErrorDescription
		if desc == "" {
			desc = result.Outcome.ErrorCode
		}
		text, err := b.templates.RenderError(templates.ErrorData{Description: desc})
		return reply{message: text}, err
	}
}

func (b *Bot) send(ctx context.Context, chatID string, notice chat.Notice) error {
	if err := b.messenger.Send(ctx, chatID, notice); err != nil {
		return fmt.Errorf("sending notice: %w", err)
	}
	return nil
}
