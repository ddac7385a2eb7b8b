package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/application/usecase"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/guard"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// ChatHistoryController serves the REST slice of the chat surface: paged
// message history and the unread counter for a channel.
type ChatHistoryController struct {
	policy  guard.Policy
	loadUC  *usecase.LoadHistoryUseCase
	store   port.MessageStore
	logger  *slog.Logger
	timeout time.Duration
}

func NewChatHistoryController(store port.MessageStore, policy guard.Policy, logger *slog.Logger) *ChatHistoryController {
	return &ChatHistoryController{
		policy:  policy,
		loadUC:  usecase.NewLoadHistoryUseCase(store),
		store:   store,
		logger:  logger.With("component", "chat-http"),
		timeout: 5 * time.Second,
	}
}

// Messages handles GET /chats/:chatId/messages?limit=&before=.
func (ctl *ChatHistoryController) Messages(identityFrom func(*gin.Context) (auth.Identity, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		chatID := c.Param("chatId")
		if !ctl.policy.Authorize(c.Request.Context(), identity, chatID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied to chat"})
			return
		}

		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		var before time.Time
		if v := c.Query("before"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "before must be RFC 3339"})
				return
			}
			before = t
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.timeout)
		defer cancel()

		msgs, err := ctl.loadUC.Execute(ctx, usecase.LoadHistoryInput{ChatID: chatID, Before: before, Limit: limit})
		if err != nil {
			if errors.Is(err, usecase.ErrPersistence) {
				ctl.logger.Error("history query failed", "chatId", chatID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if msgs == nil {
			msgs = []chat.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

// UnreadCount handles GET /chats/:chatId/unread-count.
func (ctl *ChatHistoryController) UnreadCount(identityFrom func(*gin.Context) (auth.Identity, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		chatID := c.Param("chatId")
		if !ctl.policy.Authorize(c.Request.Context(), identity, chatID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied to chat"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.timeout)
		defer cancel()

		n, err := ctl.store.UnreadCount(ctx, chatID)
		if err != nil {
			ctl.logger.Error("unread count failed", "chatId", chatID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}
