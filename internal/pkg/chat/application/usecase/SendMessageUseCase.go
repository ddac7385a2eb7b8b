package usecase

import (
	"context"
	"fmt"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/guard"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// SendMessageInput carries the data needed to persist a new message.
// Content validation and defaults live in chat.NewMessage to preserve
// domain integrity.
type SendMessageInput struct {
	Identity auth.Identity
	ChatID   string
	Content  string
}

// SendMessageUseCase persists a message into a channel the sender may access.
type SendMessageUseCase struct {
	Guard guard.Policy
	Store port.MessageStore
}

func NewSendMessageUseCase(g guard.Policy, store port.MessageStore) *SendMessageUseCase {
	return &SendMessageUseCase{Guard: g, Store: store}
}

// Execute validates, persists and returns the message with its assigned id.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	if !uc.Guard.Authorize(ctx, in.Identity, in.ChatID) {
		return nil, ErrAccessDenied
	}

	msg, err := chat.NewMessage(chat.Message{
		ChatID:     in.ChatID,
		SenderID:   in.Identity.UserID,
		SenderRole: chat.Role(in.Identity.Role),
		Content:    in.Content,
	})
	if err != nil {
		return nil, err
	}

	id, err := uc.Store.Save(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id
	return msg, nil
}
