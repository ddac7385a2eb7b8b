package usecase

import (
	"context"
	"fmt"
	"time"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// DeliverPendingInput names the identity that just came online.
type DeliverPendingInput struct {
	UserID string
	At     time.Time
}

// DeliverPendingUseCase sweeps messages still in status sent whose recipient
// is the newly online identity and advances them to delivered. It returns
// the messages that transitioned so callers can notify the senders.
type DeliverPendingUseCase struct {
	Store port.MessageStore
}

func NewDeliverPendingUseCase(store port.MessageStore) *DeliverPendingUseCase {
	return &DeliverPendingUseCase{Store: store}
}

// deliverBatchSize is how many pending messages each store query fetches.
// The sweep keeps querying until a batch comes back short, so a backlog
// larger than one batch is still fully drained in a single run.
const deliverBatchSize = 100

func (uc *DeliverPendingUseCase) Execute(ctx context.Context, in DeliverPendingInput) ([]chat.Message, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	at := in.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var delivered []chat.Message
	for {
		pending, err := uc.Store.UndeliveredTo(ctx, in.UserID, deliverBatchSize)
		if err != nil {
			return delivered, fmt.Errorf("%w: %v", ErrPersistence, err)
		}

		for _, msg := range pending {
			ok, err := uc.Store.UpdateStatus(ctx, msg.ID, chat.StatusDelivered, at)
			if err != nil {
				return delivered, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			if !ok {
				// Raced with a read receipt; the status already moved further.
				continue
			}
			msg.Status = chat.StatusDelivered
			stamp := at
			msg.DeliveredAt = &stamp
			delivered = append(delivered, msg)
		}

		if len(pending) < deliverBatchSize {
			return delivered, nil
		}
	}
}
