// Package chat defines the transport neutral events and notices the bot exchanges with a messenger
package chat

import (
	"context"

	"github.com/google/uuid"
)

// EventKind identifies an inbound interaction
type EventKind string

const (
	// EventStart is a request to begin authentication
	EventStart EventKind = "start"

	// EventCheck is a request to check a pending authentication
	EventCheck EventKind = "check"
)

// CheckTag is the identifying tag carried by the "completed authentication" control
const CheckTag = "check_auth"

// Event is one inbound interaction from a chat
type Event struct {
	ID     uuid.UUID
	Kind   EventKind
	ChatID string

	// InteractionID identifies the interaction to acknowledge; empty for plain commands
	InteractionID string
}

// NewEvent creates an event with a fresh id
func NewEvent(kind EventKind, chatID, interactionID string) Event {
	return Event{
		ID:            uuid.New(),
		Kind:          kind,
		ChatID:        chatID,
		InteractionID: interactionID,
	}
}

// Button is a single actionable control attached to a notice
type Button struct {
	Text string
	Tag  string
}

// Notice is a plain text message to a chat
type Notice struct {
	Text   string
	Button *Button

	// Image is an optional PNG sent ahead of the text
	Image []byte
}

// Messenger delivers notices to chats
type Messenger interface {
	// Send posts a notice to a chat
	Send(ctx context.Context, chatID string, notice Notice) error

	// Acknowledge clears the interaction's loading state. A non-empty text is shown
	// to the user, as an alert when alert is set.
	Acknowledge(ctx context.Context, interactionID string, text string, alert bool) error
}
