package controller

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/guard"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/adapter"
)

func newHistoryRouter(t *testing.T, store *adapter.MemoryStore, identity auth.Identity) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctl := NewChatHistoryController(store, guard.ParticipantPolicy{}, logger)

	identityFrom := func(*gin.Context) (auth.Identity, bool) {
		return identity, identity.UserID != ""
	}

	r := gin.New()
	r.GET("/chats/:chatId/messages", ctl.Messages(identityFrom))
	r.GET("/chats/:chatId/unread-count", ctl.UnreadCount(identityFrom))
	return r
}

func TestHistoryMessages(t *testing.T) {
	store := adapter.NewMemoryStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		_, err := store.Save(context.Background(), chat.Message{
			ChatID:    "alice_bob",
			SenderID:  "bob",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	r := newHistoryRouter(t, store, auth.Identity{UserID: "alice", Role: "manager"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/chats/alice_bob/messages", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Messages []chat.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "first", body.Messages[0].Content)

	// Paging backwards from the cursor.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/chats/alice_bob/messages?before="+base.Add(time.Minute).Format(time.RFC3339)+"&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "first", body.Messages[0].Content)
}

func TestHistoryMessagesBadCursor(t *testing.T) {
	r := newHistoryRouter(t, adapter.NewMemoryStore(), auth.Identity{UserID: "alice", Role: "manager"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/chats/alice_bob/messages?before=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryAccessDenied(t *testing.T) {
	r := newHistoryRouter(t, adapter.NewMemoryStore(), auth.Identity{UserID: "mallory", Role: "employee"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/chats/alice_bob/messages", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/chats/alice_bob/unread-count", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHistoryRequiresIdentity(t *testing.T) {
	r := newHistoryRouter(t, adapter.NewMemoryStore(), auth.Identity{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/chats/alice_bob/messages", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnreadCount(t *testing.T) {
	store := adapter.NewMemoryStore()
	ctx := context.Background()
	_, err := store.Save(ctx, chat.Message{ChatID: "alice_bob", SenderID: "bob", Content: "one"})
	require.NoError(t, err)
	readID, err := store.Save(ctx, chat.Message{ChatID: "alice_bob", SenderID: "bob", Content: "two"})
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, readID, chat.StatusRead, time.Now().UTC())
	require.NoError(t, err)

	r := newHistoryRouter(t, store, auth.Identity{UserID: "alice", Role: "manager"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/chats/alice_bob/unread-count", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}
