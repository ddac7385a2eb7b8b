package adapter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
)

func seedMessage(t *testing.T, s *MemoryStore, chatID, senderID, content string, at time.Time) string {
	t.Helper()
	id, err := s.Save(context.Background(), chat.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: at,
	})
	require.NoError(t, err)
	return id
}

func TestMemoryStoreSaveAssignsIDAndNormalizes(t *testing.T) {
	s := NewMemoryStore()
	id, err := s.Save(context.Background(), chat.Message{
		ChatID:   "alice_bob",
		SenderID: "alice",
		Content:  "hello",
		Status:   chat.StatusSending,
		TempID:   "temp_123_abc",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := s.History(context.Background(), "alice_bob", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, chat.StatusSent, msgs[0].Status, "sending never persists")
	assert.Empty(t, msgs[0].TempID, "temp ids never persist")
}

func TestMemoryStoreHistoryOrderAndLimit(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedMessage(t, s, "alice_bob", "alice", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
	}
	seedMessage(t, s, "carol_dave", "carol", "other channel", base)

	msgs, err := s.History(context.Background(), "alice_bob", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3, "limit keeps the newest page")
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m4", msgs[2].Content, "oldest to newest within the page")
}

func TestMemoryStoreBefore(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedMessage(t, s, "alice_bob", "alice", fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	msgs, err := s.Before(context.Background(), "alice_bob", base.Add(3*time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].Content)
	assert.Equal(t, "m2", msgs[1].Content, "page closest to the cursor")

	msgs, err = s.Before(context.Background(), "alice_bob", base, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs, "cursor timestamp itself is excluded")
}

func TestMemoryStoreMarkRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fromBob := seedMessage(t, s, "alice_bob", "bob", "for alice", at)
	fromAlice := seedMessage(t, s, "alice_bob", "alice", "alice's own", at)
	alreadyRead := seedMessage(t, s, "alice_bob", "bob", "already read", at)
	_, err := s.UpdateStatus(ctx, alreadyRead, chat.StatusRead, at)
	require.NoError(t, err)

	ids, err := s.MarkRead(ctx, "alice_bob", "alice", at)
	require.NoError(t, err)
	assert.Equal(t, []string{fromBob}, ids, "only unread peer messages transition")

	// Idempotent: a second read pass finds nothing new.
	ids, err = s.MarkRead(ctx, "alice_bob", "alice", at)
	require.NoError(t, err)
	assert.Empty(t, ids)

	msgs, err := s.History(ctx, "alice_bob", 10)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.ID == fromAlice {
			assert.Equal(t, chat.StatusSent, m.Status, "reader's own messages untouched")
			continue
		}
		assert.Equal(t, chat.StatusRead, m.Status)
		require.NotNil(t, m.ReadAt)
		assert.NotNil(t, m.DeliveredAt, "read implies delivered")
	}
}

func TestMemoryStoreUpdateStatusIsMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Now().UTC()
	id := seedMessage(t, s, "alice_bob", "alice", "hello", at)

	ok, err := s.UpdateStatus(ctx, id, chat.StatusDelivered, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateStatus(ctx, id, chat.StatusRead, at)
	require.NoError(t, err)
	assert.True(t, ok)

	// Downgrades and repeats are refused without error.
	ok, err = s.UpdateStatus(ctx, id, chat.StatusDelivered, at)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.UpdateStatus(ctx, id, chat.StatusRead, at)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.UpdateStatus(ctx, id, chat.StatusSending, at)
	assert.Error(t, err, "sending is a client-only status")

	_, err = s.UpdateStatus(ctx, "missing", chat.StatusDelivered, at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUndeliveredTo(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Now().UTC()

	forAlice := seedMessage(t, s, "alice_bob", "bob", "pending", at)
	seedMessage(t, s, "alice_bob", "alice", "alice's own", at)
	deliveredID := seedMessage(t, s, "alice_bob", "bob", "already delivered", at)
	_, err := s.UpdateStatus(ctx, deliveredID, chat.StatusDelivered, at)
	require.NoError(t, err)
	seedMessage(t, s, "bob_carol", "carol", "for bob", at)

	pending, err := s.UndeliveredTo(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, forAlice, pending[0].ID)
}

func TestMemoryStoreUnreadCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Now().UTC()

	seedMessage(t, s, "alice_bob", "bob", "one", at)
	seedMessage(t, s, "alice_bob", "bob", "two", at)
	readID := seedMessage(t, s, "alice_bob", "bob", "three", at)
	_, err := s.UpdateStatus(ctx, readID, chat.StatusRead, at)
	require.NoError(t, err)

	n, err := s.UnreadCount(ctx, "alice_bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.UnreadCount(ctx, "empty_room")
	require.NoError(t, err)
	assert.Zero(t, n)
}
