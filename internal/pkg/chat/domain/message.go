package chat

import (
	"errors"
	"strings"
	"time"
)

// Role distinguishes the two sides of a channel.
type Role string

const (
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

var (
	ErrEmptyContent = errors.New("chat: message content is empty")
	ErrMissingIDs   = errors.New("chat: chat_id and sender_id are required")
)

// Message is an immutable log entry in a two-party channel. ID is assigned
// by the store and is empty until the message has been persisted. TempID is
// a client-generated correlation id used to reconcile the optimistic entry
// once the permanent id is known; it is never persisted.
type Message struct {
	ID          string     `json:"id,omitempty"`
	ChatID      string     `json:"chatId"`
	SenderID    string     `json:"senderId"`
	SenderRole  Role       `json:"senderRole"`
	Content     string     `json:"content"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	TempID      string     `json:"tempId,omitempty"`
}

// NewMessage validates and normalizes a message before persistence. Content
// is trimmed; whitespace-only content is rejected. The message enters the
// persisted lifecycle at StatusSent.
func NewMessage(m Message) (*Message, error) {
	if m.ChatID == "" || m.SenderID == "" {
		return nil, ErrMissingIDs
	}

	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return nil, ErrEmptyContent
	}

	if _, err := Other(m.ChatID, m.SenderID); err != nil {
		return nil, err
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Status = StatusSent

	return &m, nil
}
