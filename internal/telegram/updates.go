package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/wrale/keycloak-device-bot/internal/chat"
)

const startCommand = "start"

// Dispatcher routes chat events
type Dispatcher interface {
	Dispatch(ctx context.Context, event chat.Event) error
}

// UpdateHandler processes one update
type UpdateHandler func(ctx context.Context, u tgbotapi.Update)

// EventFromUpdate maps an update to a chat event. It reports false for updates the bot ignores.
func EventFromUpdate(u tgbotapi.Update) (chat.Event, bool) {
	switch {
	case u.Message != nil:
		m := u.Message
		if m.Chat == nil || !m.IsCommand() || m.Command() != startCommand {
			return chat.Event{}, false
		}
		return chat.NewEvent(chat.EventStart, chatID(m.Chat), ""), true

	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.Data != chat.CheckTag {
			return chat.Event{}, false
		}
		// Presses on messages the bot cannot see carry no chat but still need an answer
		var id string
		if cq.Message != nil && cq.Message.Chat != nil {
			id = chatID(cq.Message.Chat)
		}
		return chat.NewEvent(chat.EventCheck, id, cq.ID), true
	}
	return chat.Event{}, false
}

func chatID(c *tgbotapi.Chat) string {
	return strconv.FormatInt(c.ID, 10)
}

// Dispatch returns an UpdateHandler feeding recognised updates to d
func Dispatch(d Dispatcher, logger *zap.Logger) UpdateHandler {
	return func(ctx context.Context, u tgbotapi.Update) {
		event, ok := EventFromUpdate(u)
		if !ok {
			logger.Debug("ignoring update", zap.Int("update_id", u.UpdateID))
			return
		}

		if err := d.Dispatch(ctx, event); err != nil {
			logger.Error("handling update failed",
				zap.Int("update_id", u.UpdateID),
				zap.String("event", string(event.Kind)),
				zap.String("chat_id", event.ChatID),
				zap.Error(err),
			)
		}
	}
}
