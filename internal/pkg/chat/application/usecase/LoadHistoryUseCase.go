package usecase

import (
	"context"
	"fmt"
	"time"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// LoadHistoryInput pages backwards through a channel. A zero Before cursor
// means "the newest page".
type LoadHistoryInput struct {
	ChatID string
	Before time.Time
	Limit  int
}

// LoadHistoryUseCase fetches a chronological page of messages older than the
// cursor, for the load-more flow and the REST history endpoint.
type LoadHistoryUseCase struct {
	Store port.MessageStore
}

func NewLoadHistoryUseCase(store port.MessageStore) *LoadHistoryUseCase {
	return &LoadHistoryUseCase{Store: store}
}

func (uc *LoadHistoryUseCase) Execute(ctx context.Context, in LoadHistoryInput) ([]chat.Message, error) {
	if in.ChatID == "" {
		return nil, fmt.Errorf("chat_id is required")
	}

	var (
		msgs []chat.Message
		err  error
	)
	if in.Before.IsZero() {
		msgs, err = uc.Store.History(ctx, in.ChatID, in.Limit)
	} else {
		msgs, err = uc.Store.Before(ctx, in.ChatID, in.Before, in.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}
