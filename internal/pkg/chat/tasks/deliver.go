// Package tasks holds the background jobs of the chat core. The only job is
// the delivery sweep: when an identity comes online, messages parked in
// status sent with that identity as recipient are advanced to delivered and
// the senders are notified.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	qport "github.com/QNhatCNTT/employee-task-management/internal/infrastructure/queue/port"
	"github.com/QNhatCNTT/employee-task-management/internal/infrastructure/realtime"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/application/usecase"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/protocol"
)

// TypeDeliverPending is the queue task type for the delivery sweep.
const TypeDeliverPending = "chat:deliver-pending"

type deliverPendingPayload struct {
	UserID string `json:"userId"`
}

// Sweeper schedules a delivery sweep for an identity that just came online.
type Sweeper interface {
	Schedule(ctx context.Context, userID string) error
}

// QueueSweeper enqueues the sweep as a background task (asynq-backed in
// production) so the connect path never waits on store writes.
type QueueSweeper struct {
	Queue qport.Client
}

var _ Sweeper = (*QueueSweeper)(nil)

func (s *QueueSweeper) Schedule(ctx context.Context, userID string) error {
	payload, err := json.Marshal(deliverPendingPayload{UserID: userID})
	if err != nil {
		return fmt.Errorf("deliver pending: marshal payload: %w", err)
	}
	_, err = s.Queue.Enqueue(ctx, qport.Task{Type: TypeDeliverPending, Payload: payload}, qport.EnqueueOption{
		Queue:    "chat",
		MaxRetry: 3,
	})
	return err
}

// InlineSweeper runs the sweep in-process when no queue backend is
// configured. The goroutine keeps the connect path non-blocking.
type InlineSweeper struct {
	UC     *usecase.DeliverPendingUseCase
	Hub    *realtime.Hub
	Logger *slog.Logger
}

var _ Sweeper = (*InlineSweeper)(nil)

func (s *InlineSweeper) Schedule(_ context.Context, userID string) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := RunSweep(ctx, userID, s.UC, s.Hub); err != nil {
			s.Logger.Warn("delivery sweep failed", "userId", userID, "error", err)
		}
	}()
	return nil
}

// RunSweep marks the identity's pending messages delivered and pushes a
// status update to each still-connected sender.
func RunSweep(ctx context.Context, userID string, uc *usecase.DeliverPendingUseCase, hub *realtime.Hub) error {
	delivered, err := uc.Execute(ctx, usecase.DeliverPendingInput{UserID: userID})
	if err != nil {
		return err
	}
	for _, msg := range delivered {
		payload, err := protocol.Encode(protocol.EventStatusUpdate, "", protocol.StatusUpdate{
			MessageID: msg.ID,
			Status:    chat.StatusDelivered,
			Timestamp: msg.DeliveredAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		hub.NotifyUser(msg.SenderID, payload)
	}
	return nil
}

// NewDeliverPendingHandler adapts the sweep to the queue server contract.
func NewDeliverPendingHandler(uc *usecase.DeliverPendingUseCase, hub *realtime.Hub, logger *slog.Logger) qport.Handler {
	return func(ctx context.Context, task qport.Task) error {
		var p deliverPendingPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("deliver pending: unmarshal payload: %w", err)
		}
		if err := RunSweep(ctx, p.UserID, uc, hub); err != nil {
			logger.Warn("delivery sweep failed", "userId", p.UserID, "error", err)
			return err
		}
		return nil
	}
}
