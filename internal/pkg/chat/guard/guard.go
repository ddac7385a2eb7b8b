// Package guard decides whether an identity may join a chat channel.
package guard

import (
	"context"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
)

// Policy authorizes channel access. Authorization failure is a normal
// outcome, not an error; callers surface it as an access-denied event.
type Policy interface {
	Authorize(ctx context.Context, id auth.Identity, chatID string) bool
}

// ParticipantPolicy is the primary policy: the identity must be one of the
// two ids embedded in the channel id. Any identity that can derive a valid
// two-party channel id for itself may join it; stricter organizational rules
// belong to a wrapping policy.
type ParticipantPolicy struct{}

var _ Policy = ParticipantPolicy{}

func (ParticipantPolicy) Authorize(_ context.Context, id auth.Identity, chatID string) bool {
	a, b, err := chat.ParseChannel(chatID)
	if err != nil {
		return false
	}
	return id.UserID == a || id.UserID == b
}

// OwnershipFunc reports whether managerID owns employeeID.
type OwnershipFunc func(ctx context.Context, managerID, employeeID string) (bool, error)

// OwnershipPolicy additionally requires managers to own the employee on the
// other side of the channel. Employees are still checked only for
// participation. Lookup errors deny access.
type OwnershipPolicy struct {
	Owns OwnershipFunc
}

var _ Policy = OwnershipPolicy{}

func (p OwnershipPolicy) Authorize(ctx context.Context, id auth.Identity, chatID string) bool {
	if !(ParticipantPolicy{}).Authorize(ctx, id, chatID) {
		return false
	}
	if id.Role != string(chat.RoleManager) || p.Owns == nil {
		return true
	}
	peer, err := chat.Other(chatID, id.UserID)
	if err != nil {
		return false
	}
	ok, err := p.Owns(ctx, id.UserID, peer)
	return err == nil && ok
}
