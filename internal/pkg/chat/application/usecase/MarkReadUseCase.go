package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// MarkReadInput identifies the channel and the reader.
type MarkReadInput struct {
	ChatID   string
	ReaderID string
	At       time.Time
}

// MarkReadUseCase advances every message in the channel not sent by the
// reader to status read and returns the ids that transitioned.
type MarkReadUseCase struct {
	Store port.MessageStore
}

func NewMarkReadUseCase(store port.MessageStore) *MarkReadUseCase {
	return &MarkReadUseCase{Store: store}
}

func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) ([]string, error) {
	if in.ChatID == "" || in.ReaderID == "" {
		return nil, fmt.Errorf("chat_id and reader_id are required")
	}
	at := in.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	ids, err := uc.Store.MarkRead(ctx, in.ChatID, in.ReaderID, at)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return ids, nil
}
