package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/guard"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// JoinChannelInput carries a request to enter a channel room.
type JoinChannelInput struct {
	Identity auth.Identity
	ChatID   string
	PageSize int
	At       time.Time
}

// JoinChannelOutput is the replayed history plus the ids of messages the
// join marked as read (messages addressed to the joiner).
type JoinChannelOutput struct {
	History []chat.Message
	ReadIDs []string
}

// JoinChannelUseCase authorizes channel access, loads the history replay and
// marks the joiner's unread messages as read in one sequence.
type JoinChannelUseCase struct {
	Guard guard.Policy
	Store port.MessageStore
}

func NewJoinChannelUseCase(g guard.Policy, store port.MessageStore) *JoinChannelUseCase {
	return &JoinChannelUseCase{Guard: g, Store: store}
}

func (uc *JoinChannelUseCase) Execute(ctx context.Context, in JoinChannelInput) (*JoinChannelOutput, error) {
	if in.ChatID == "" {
		return nil, fmt.Errorf("chat_id is required")
	}
	if !uc.Guard.Authorize(ctx, in.Identity, in.ChatID) {
		return nil, ErrAccessDenied
	}

	history, err := uc.Store.History(ctx, in.ChatID, in.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	at := in.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	readIDs, err := uc.Store.MarkRead(ctx, in.ChatID, in.Identity.UserID, at)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return &JoinChannelOutput{History: history, ReadIDs: readIDs}, nil
}
