// Package protocol defines the websocket wire format shared by the server
// and the Go client. Every exchange is a JSON envelope carrying an event
// name, an event-specific data payload and an optional ack correlation id.
// Event names and payload shapes are a compatibility contract with deployed
// clients and must not change.
package protocol

import (
	"encoding/json"
	"fmt"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
)

// Client to server events.
const (
	EventJoinChat       = "join-chat"
	EventLeaveChat      = "leave-chat"
	EventSendMessage    = "send-message"
	EventTyping         = "typing"
	EventStopTyping     = "stop-typing"
	EventMessageRead    = "message-read"
	EventLoadMore       = "load-more"
	EventGetOnlineUsers = "get-online-users"
)

// Server to client events.
const (
	EventConnected      = "connected"
	EventAck            = "ack"
	EventMessageHistory = "message-history"
	EventReceiveMessage = "receive-message"
	EventStatusUpdate   = "message-status-update"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventMessagesRead   = "messages-read"
	EventMoreMessages   = "more-messages"
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventPresenceUpdate = "presence-update"
	EventError          = "error"
)

// Frame is the transport envelope. AckID correlates a request frame with its
// ack frame; it plays the role of the acknowledgment callback in the
// original event channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	AckID string          `json:"ackId,omitempty"`
}

// Encode marshals data into a complete frame.
func Encode(event, ackID string, data any) ([]byte, error) {
	f := Frame{Event: event, AckID: ackID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", event, err)
		}
		f.Data = raw
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", event, err)
	}
	return b, nil
}

// ChatRef addresses a channel; payload of join-chat, leave-chat, typing,
// stop-typing and message-read.
type ChatRef struct {
	ChatID string `json:"chatId"`
}

// SendMessage is the send-message payload. TempID is the client correlation
// id echoed back in status updates.
type SendMessage struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
	TempID  string `json:"tempId"`
}

// LoadMore pages backwards from the cursor timestamp (RFC 3339).
type LoadMore struct {
	ChatID          string `json:"chatId"`
	BeforeTimestamp string `json:"beforeTimestamp"`
}

// GetOnlineUsers is the batched presence query payload.
type GetOnlineUsers struct {
	UserIDs []string `json:"userIds"`
}

// JoinAck acknowledges join-chat.
type JoinAck struct {
	Success bool `json:"success"`
}

// SendAck acknowledges send-message.
type SendAck struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OnlineUsersAck acknowledges get-online-users.
type OnlineUsersAck struct {
	OnlineUsers []string `json:"onlineUsers"`
}

// StatusUpdate reports a delivery-status transition for one message. TempID
// is present while the sender may not yet know the permanent id.
type StatusUpdate struct {
	MessageID string      `json:"messageId"`
	TempID    string      `json:"tempId,omitempty"`
	Status    chat.Status `json:"status"`
	Timestamp string      `json:"timestamp"`
}

// Typing is the user-typing / user-stop-typing payload. UserRole is only
// set on user-typing.
type Typing struct {
	UserID   string `json:"userId"`
	UserRole string `json:"userRole,omitempty"`
}

// MessagesRead lists the message ids a reader just consumed.
type MessagesRead struct {
	ChatID     string   `json:"chatId"`
	ReaderID   string   `json:"readerId"`
	MessageIDs []string `json:"messageIds"`
}

// Presence is the user-online / user-offline payload.
type Presence struct {
	UserID string `json:"userId"`
}

// PresenceUpdate is the combined presence transition payload.
type PresenceUpdate struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// Error is pushed for failures that keep the connection open.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
