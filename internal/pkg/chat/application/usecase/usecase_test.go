package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/guard"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/adapter"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

var errStoreDown = errors.New("store down")

// failingStore fails every operation; used to assert persistence-error
// wrapping.
type failingStore struct{ port.MessageStore }

func (failingStore) Save(context.Context, chat.Message) (string, error) {
	return "", errStoreDown
}

func (failingStore) History(context.Context, string, int) ([]chat.Message, error) {
	return nil, errStoreDown
}

func (failingStore) UndeliveredTo(context.Context, string, int) ([]chat.Message, error) {
	return nil, errStoreDown
}

func alice() auth.Identity {
	return auth.Identity{UserID: "alice", Role: "manager"}
}

func TestSendMessage(t *testing.T) {
	store := adapter.NewMemoryStore()
	uc := NewSendMessageUseCase(guard.ParticipantPolicy{}, store)

	msg, err := uc.Execute(context.Background(), SendMessageInput{
		Identity: alice(),
		ChatID:   "alice_bob",
		Content:  "  deadline moved to friday ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "deadline moved to friday", msg.Content)
	assert.Equal(t, chat.StatusSent, msg.Status)
	assert.Equal(t, chat.RoleManager, msg.SenderRole)
}

func TestSendMessageAccessDenied(t *testing.T) {
	uc := NewSendMessageUseCase(guard.ParticipantPolicy{}, adapter.NewMemoryStore())

	_, err := uc.Execute(context.Background(), SendMessageInput{
		Identity: alice(),
		ChatID:   "bob_carol",
		Content:  "hi",
	})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestSendMessageEmptyContent(t *testing.T) {
	uc := NewSendMessageUseCase(guard.ParticipantPolicy{}, adapter.NewMemoryStore())

	_, err := uc.Execute(context.Background(), SendMessageInput{
		Identity: alice(),
		ChatID:   "alice_bob",
		Content:  "   ",
	})
	assert.ErrorIs(t, err, chat.ErrEmptyContent)
}

func TestSendMessageWrapsStoreFailure(t *testing.T) {
	uc := NewSendMessageUseCase(guard.ParticipantPolicy{}, failingStore{})

	_, err := uc.Execute(context.Background(), SendMessageInput{
		Identity: alice(),
		ChatID:   "alice_bob",
		Content:  "hi",
	})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestJoinChannel(t *testing.T) {
	store := adapter.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Save(ctx, chat.Message{ChatID: "alice_bob", SenderID: "bob", Content: "unread one"})
	require.NoError(t, err)
	_, err = store.Save(ctx, chat.Message{ChatID: "alice_bob", SenderID: "alice", Content: "own message"})
	require.NoError(t, err)

	uc := NewJoinChannelUseCase(guard.ParticipantPolicy{}, store)
	out, err := uc.Execute(ctx, JoinChannelInput{Identity: alice(), ChatID: "alice_bob", PageSize: 50})
	require.NoError(t, err)

	assert.Len(t, out.History, 2)
	assert.Len(t, out.ReadIDs, 1, "joining reads the peer's unread messages")
}

func TestJoinChannelAccessDenied(t *testing.T) {
	uc := NewJoinChannelUseCase(guard.ParticipantPolicy{}, adapter.NewMemoryStore())
	_, err := uc.Execute(context.Background(), JoinChannelInput{Identity: alice(), ChatID: "bob_carol"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestMarkRead(t *testing.T) {
	store := adapter.NewMemoryStore()
	ctx := context.Background()
	id, err := store.Save(ctx, chat.Message{ChatID: "alice_bob", SenderID: "bob", Content: "hello"})
	require.NoError(t, err)

	uc := NewMarkReadUseCase(store)
	ids, err := uc.Execute(ctx, MarkReadInput{ChatID: "alice_bob", ReaderID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	_, err = uc.Execute(ctx, MarkReadInput{ChatID: "alice_bob"})
	assert.Error(t, err, "reader id is required")
}

func TestLoadHistoryPagesBackwards(t *testing.T) {
	store := adapter.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range []string{"m0", "m1", "m2"} {
		_, err := store.Save(ctx, chat.Message{
			ChatID:    "alice_bob",
			SenderID:  "alice",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	uc := NewLoadHistoryUseCase(store)

	newest, err := uc.Execute(ctx, LoadHistoryInput{ChatID: "alice_bob", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, newest, 3, "zero cursor loads the newest page")

	older, err := uc.Execute(ctx, LoadHistoryInput{ChatID: "alice_bob", Before: base.Add(2 * time.Minute), Limit: 10})
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "m1", older[1].Content)
}

func TestDeliverPending(t *testing.T) {
	store := adapter.NewMemoryStore()
	ctx := context.Background()
	pendingID, err := store.Save(ctx, chat.Message{ChatID: "alice_bob", SenderID: "bob", Content: "while offline"})
	require.NoError(t, err)
	readID, err := store.Save(ctx, chat.Message{ChatID: "alice_bob", SenderID: "bob", Content: "already read"})
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, readID, chat.StatusRead, time.Now().UTC())
	require.NoError(t, err)

	uc := NewDeliverPendingUseCase(store)
	delivered, err := uc.Execute(ctx, DeliverPendingInput{UserID: "alice"})
	require.NoError(t, err)

	require.Len(t, delivered, 1)
	assert.Equal(t, pendingID, delivered[0].ID)
	assert.Equal(t, chat.StatusDelivered, delivered[0].Status)
	require.NotNil(t, delivered[0].DeliveredAt)

	// A second sweep finds nothing left to deliver.
	delivered, err = uc.Execute(ctx, DeliverPendingInput{UserID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, delivered)
}

func TestDeliverPendingDrainsBacklogBeyondOneBatch(t *testing.T) {
	store := adapter.NewMemoryStore()
	ctx := context.Background()
	backlog := deliverBatchSize + 37
	for i := 0; i < backlog; i++ {
		_, err := store.Save(ctx, chat.Message{
			ChatID:   "alice_bob",
			SenderID: "bob",
			Content:  fmt.Sprintf("offline backlog %d", i),
		})
		require.NoError(t, err)
	}

	uc := NewDeliverPendingUseCase(store)
	delivered, err := uc.Execute(ctx, DeliverPendingInput{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, delivered, backlog, "one sweep drains the whole backlog")

	left, err := store.UndeliveredTo(ctx, "alice", backlog)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestDeliverPendingWrapsStoreFailure(t *testing.T) {
	uc := NewDeliverPendingUseCase(failingStore{})
	_, err := uc.Execute(context.Background(), DeliverPendingInput{UserID: "alice"})
	assert.ErrorIs(t, err, ErrPersistence)
}
