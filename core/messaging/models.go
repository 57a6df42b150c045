package messaging

import (
	"time"

	"github.com/trezcool/shule/core"
)

// Notification statuses
const (
	StatusUnread = "UNREAD"
	StatusRead   = "READ"
)

// Message is a direct message between two users. Only its content may change
// after creation.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sent_at"`    // UTC, server assigned
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// Notification is derived from a Message: exactly one is created per sent
// message, in the same transaction. Its content is frozen at creation and not
// updated when the message is edited.
type Notification struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

func (n *Notification) IsRead() bool { return n.Status == StatusRead }

// NewMessage contains information needed to send a message.
type NewMessage struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

func (nm *NewMessage) Validate() error {
	nm.Content = core.CleanString(nm.Content)
	return core.Validate.Struct(nm)
}
