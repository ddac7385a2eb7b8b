package client

import (
	"sync"
	"time"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/protocol"
)

// Conversation is the client-side view of one channel: an ordered message
// list with optimistic entries reconciled in place as server state arrives.
type Conversation struct {
	mu       sync.Mutex
	chatID   string
	messages []chat.Message
}

func NewConversation(chatID string) *Conversation {
	return &Conversation{chatID: chatID}
}

func (c *Conversation) ChatID() string { return c.chatID }

// Messages returns a snapshot of the current list.
func (c *Conversation) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ApplyHistory replaces the list with the server replay. Optimistic entries
// still awaiting acknowledgment are re-appended so they stay visible.
func (c *Conversation) ApplyHistory(history []chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending []chat.Message
	for _, m := range c.messages {
		if m.Status == chat.StatusSending {
			pending = append(pending, m)
		}
	}
	c.messages = append(append([]chat.Message(nil), history...), pending...)
}

// AddOptimistic inserts a local message in sending state before any server
// round-trip. The temp id doubles as the provisional id.
func (c *Conversation) AddOptimistic(tempID, senderID string, role chat.Role, content string) chat.Message {
	m := chat.Message{
		ID:         tempID,
		TempID:     tempID,
		ChatID:     c.chatID,
		SenderID:   senderID,
		SenderRole: role,
		Content:    content,
		Status:     chat.StatusSending,
		CreatedAt:  time.Now().UTC(),
	}

	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
	return m
}

// ApplyIncoming merges a broadcast message: an existing entry matched by
// temp id (falling back to permanent id) is replaced in place, never
// duplicated; unknown messages are appended.
func (c *Conversation) ApplyIncoming(m chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if c.matches(c.messages[i], m.TempID, m.ID) {
			// Keep the further-advanced status if a status update raced
			// ahead of the broadcast.
			if c.messages[i].Status.Rank() > m.Status.Rank() {
				m.Status = c.messages[i].Status
			}
			c.messages[i] = m
			return
		}
	}
	c.messages = append(c.messages, m)
}

// ApplyStatus advances the matched message's delivery status. Updates that
// would regress the lifecycle are ignored, keeping observed transitions a
// subsequence of sent, delivered, read.
func (c *Conversation) ApplyStatus(u protocol.StatusUpdate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.messages {
		if !c.matches(c.messages[i], u.TempID, u.MessageID) {
			continue
		}
		if !c.messages[i].Status.CanAdvance(u.Status) {
			return false
		}
		if u.MessageID != "" {
			c.messages[i].ID = u.MessageID
		}
		c.messages[i].Status = u.Status
		return true
	}
	return false
}

// ApplyRead marks the listed message ids as read.
func (c *Conversation) ApplyRead(ids []string) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if _, ok := set[c.messages[i].ID]; ok && c.messages[i].Status.CanAdvance(chat.StatusRead) {
			c.messages[i].Status = chat.StatusRead
		}
	}
}

// Prepend inserts an older page before the existing list (load-more).
func (c *Conversation) Prepend(older []chat.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(append([]chat.Message(nil), older...), c.messages...)
}

// matches pairs an entry with an update by temp id when the permanent id is
// not yet known, otherwise by permanent id.
func (c *Conversation) matches(m chat.Message, tempID, id string) bool {
	if tempID != "" && m.TempID == tempID {
		return true
	}
	return id != "" && m.ID == id
}
