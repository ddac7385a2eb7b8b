package port

import (
	"context"
	"time"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
)

// MessageStore is the persistence gateway for channel messages. The store
// owns message ids and message ordering; clients never supply either.
// Implementations must refuse delivery-status downgrades.
type MessageStore interface {
	// Save persists m with status sent and returns the assigned id.
	Save(ctx context.Context, m chat.Message) (string, error)

	// History returns the newest limit messages of the channel in
	// chronological (oldest first) order.
	History(ctx context.Context, chatID string, limit int) ([]chat.Message, error)

	// Before returns up to limit messages older than the cursor, in
	// chronological order.
	Before(ctx context.Context, chatID string, before time.Time, limit int) ([]chat.Message, error)

	// MarkRead advances every message in the channel not sent by readerID to
	// status read, recording at, and returns the ids that transitioned.
	// Messages already read are untouched and not returned.
	MarkRead(ctx context.Context, chatID, readerID string, at time.Time) ([]string, error)

	// UpdateStatus advances the message to status when that is a forward
	// transition, recording at in the matching timestamp column. It returns
	// false when the transition would be a downgrade.
	UpdateStatus(ctx context.Context, id string, status chat.Status, at time.Time) (bool, error)

	// UndeliveredTo returns messages still in status sent whose channel peer
	// is userID, oldest first.
	UndeliveredTo(ctx context.Context, userID string, limit int) ([]chat.Message, error)

	// UnreadCount counts messages in the channel not yet read.
	UnreadCount(ctx context.Context, chatID string) (int, error)
}
