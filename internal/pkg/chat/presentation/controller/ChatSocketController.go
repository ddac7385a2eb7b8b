package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/QNhatCNTT/employee-task-management/internal/infrastructure/realtime"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/application/usecase"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/auth"
	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/guard"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presence"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/protocol"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/tasks"
)

const defaultReadTimeout = 60 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from the separately hosted frontend.
		return true
	},
}

// ChatSocketController handles the websocket endpoint for realtime chat
// traffic. Each inbound frame is processed to completion before the next
// frame of the same connection; cross-connection events interleave freely
// and the store-assigned message order stays authoritative.
type ChatSocketController struct {
	hub     *realtime.Hub
	tracker presence.Tracker

	joinUC *usecase.JoinChannelUseCase
	sendUC *usecase.SendMessageUseCase
	readUC *usecase.MarkReadUseCase
	loadUC *usecase.LoadHistoryUseCase
	store  port.MessageStore

	sweeper tasks.Sweeper
	logger  *slog.Logger

	pageSize        int
	inflightTimeout time.Duration
}

func NewChatSocketController(
	store port.MessageStore,
	policy guard.Policy,
	hub *realtime.Hub,
	tracker presence.Tracker,
	sweeper tasks.Sweeper,
	logger *slog.Logger,
	pageSize int,
) *ChatSocketController {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &ChatSocketController{
		hub:             hub,
		tracker:         tracker,
		joinUC:          usecase.NewJoinChannelUseCase(policy, store),
		sendUC:          usecase.NewSendMessageUseCase(policy, store),
		readUC:          usecase.NewMarkReadUseCase(store),
		loadUC:          usecase.NewLoadHistoryUseCase(store),
		store:           store,
		sweeper:         sweeper,
		logger:          logger.With("component", "chat-socket"),
		pageSize:        pageSize,
		inflightTimeout: 5 * time.Second,
	}
}

// Handle authenticates the handshake, upgrades to websocket and processes
// frames until the client disconnects. The connection is refused before any
// event handling when the credential is missing or invalid; after that no
// handler ever trusts client-declared identity.
func (ctl *ChatSocketController) Handle(verifier *auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.Verify(auth.FromRequest(c.Request))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response; just log and return.
			ctl.logger.Warn("websocket upgrade failed", "userId", identity.UserID, "error", err)
			return
		}

		conn := realtime.NewConnection(identity.UserID, identity.Role, ws)
		ctl.hub.Attach(conn)
		ctl.trackOnline(identity.UserID, conn.ID)
		defer func() {
			ctl.hub.Detach(conn)
			ctl.trackOffline(identity.UserID, conn.ID)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(1 << 20)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.push(conn, protocol.EventConnected, nil)

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
					errors.Is(err, websocket.ErrCloseSent) {
					return
				}
				return
			}

			var frame protocol.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "BAD_REQUEST", "invalid payload")
				continue
			}

			switch frame.Event {
			case protocol.EventJoinChat:
				ctl.handleJoin(c, conn, identity, frame)
			case protocol.EventLeaveChat:
				ctl.handleLeave(conn, frame)
			case protocol.EventSendMessage:
				ctl.handleSend(c, conn, identity, frame)
			case protocol.EventTyping:
				ctl.handleTyping(conn, identity, frame, true)
			case protocol.EventStopTyping:
				ctl.handleTyping(conn, identity, frame, false)
			case protocol.EventMessageRead:
				ctl.handleRead(c, conn, identity, frame)
			case protocol.EventLoadMore:
				ctl.handleLoadMore(c, conn, frame)
			case protocol.EventGetOnlineUsers:
				ctl.handleGetOnlineUsers(c, conn, frame)
			default:
				ctl.replyError(conn, "UNSUPPORTED_EVENT", "unknown event")
			}
		}
	}
}

// trackOnline registers the connection and, on the identity's first
// connection, broadcasts the online transition exactly once and schedules
// the delivery sweep.
func (ctl *ChatSocketController) trackOnline(userID, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), ctl.inflightTimeout)
	defer cancel()

	first, err := ctl.tracker.AddConnection(ctx, userID, connID)
	if err != nil {
		ctl.logger.Error("presence add failed", "userId", userID, "error", err)
		return
	}
	if !first {
		return
	}

	ctl.broadcastPresence(userID, true)

	if ctl.sweeper != nil {
		if err := ctl.sweeper.Schedule(ctx, userID); err != nil {
			ctl.logger.Warn("delivery sweep schedule failed", "userId", userID, "error", err)
		}
	}
}

// trackOffline fires at most once per connection; duplicate removals inside
// the tracker are no-ops so failure-path double disconnects stay safe.
func (ctl *ChatSocketController) trackOffline(userID, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), ctl.inflightTimeout)
	defer cancel()

	last, err := ctl.tracker.RemoveConnection(ctx, userID, connID)
	if err != nil {
		ctl.logger.Error("presence remove failed", "userId", userID, "error", err)
		return
	}
	if last {
		ctl.broadcastPresence(userID, false)
	}
}

func (ctl *ChatSocketController) broadcastPresence(userID string, online bool) {
	event := protocol.EventUserOnline
	if !online {
		event = protocol.EventUserOffline
	}
	if payload, err := protocol.Encode(event, "", protocol.Presence{UserID: userID}); err == nil {
		ctl.hub.BroadcastAll(payload, userID)
	}
	if payload, err := protocol.Encode(protocol.EventPresenceUpdate, "", protocol.PresenceUpdate{UserID: userID, IsOnline: online}); err == nil {
		ctl.hub.BroadcastAll(payload, userID)
	}
}

func (ctl *ChatSocketController) handleJoin(c *gin.Context, conn *realtime.Connection, id auth.Identity, frame protocol.Frame) {
	var ref protocol.ChatRef
	if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.ChatID == "" {
		ctl.replyError(conn, "BAD_REQUEST", "chatId is required")
		ctl.ack(conn, frame.AckID, protocol.JoinAck{Success: false})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	out, err := ctl.joinUC.Execute(ctx, usecase.JoinChannelInput{
		Identity: id,
		ChatID:   ref.ChatID,
		PageSize: ctl.pageSize,
	})
	if err != nil {
		// A failed join never subscribes the connection to the room.
		switch {
		case errors.Is(err, usecase.ErrAccessDenied):
			ctl.replyError(conn, "ACCESS_DENIED", "Access denied to chat")
		default:
			ctl.logger.Error("join failed", "chatId", ref.ChatID, "userId", id.UserID, "error", err)
			ctl.replyError(conn, "JOIN_FAILED", "Failed to join chat")
		}
		ctl.ack(conn, frame.AckID, protocol.JoinAck{Success: false})
		return
	}

	ctl.hub.Join(ref.ChatID, conn)

	history := out.History
	if history == nil {
		history = []chat.Message{}
	}
	ctl.push(conn, protocol.EventMessageHistory, history)

	if len(out.ReadIDs) > 0 {
		ctl.notifyRead(ref.ChatID, id.UserID, out.ReadIDs)
	}

	ctl.ack(conn, frame.AckID, protocol.JoinAck{Success: true})
}

func (ctl *ChatSocketController) handleLeave(conn *realtime.Connection, frame protocol.Frame) {
	var ref protocol.ChatRef
	if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.ChatID == "" {
		return
	}
	ctl.hub.Leave(ref.ChatID, conn)
}

func (ctl *ChatSocketController) handleSend(c *gin.Context, conn *realtime.Connection, id auth.Identity, frame protocol.Frame) {
	var in protocol.SendMessage
	if err := json.Unmarshal(frame.Data, &in); err != nil || in.ChatID == "" {
		ctl.ack(conn, frame.AckID, protocol.SendAck{Success: false, Error: "chatId is required"})
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		// Rejected before the store is ever contacted.
		ctl.ack(conn, frame.AckID, protocol.SendAck{Success: false, Error: "Empty message"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	msg, err := ctl.sendUC.Execute(ctx, usecase.SendMessageInput{
		Identity: id,
		ChatID:   in.ChatID,
		Content:  in.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrAccessDenied):
			ctl.replyError(conn, "ACCESS_DENIED", "Access denied to chat")
			ctl.ack(conn, frame.AckID, protocol.SendAck{Success: false, Error: "Access denied"})
		default:
			// The sender's optimistic entry stays in sending state so the
			// client retry queue can re-attempt it.
			ctl.logger.Error("send failed", "chatId", in.ChatID, "userId", id.UserID, "error", err)
			ctl.ack(conn, frame.AckID, protocol.SendAck{Success: false, Error: "Failed to send message"})
		}
		return
	}

	ctl.ack(conn, frame.AckID, protocol.SendAck{Success: true, MessageID: msg.ID})

	ctl.push(conn, protocol.EventStatusUpdate, protocol.StatusUpdate{
		MessageID: msg.ID,
		TempID:    in.TempID,
		Status:    chat.StatusSent,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
	})

	// Broadcast to the whole room, sender included, so every device of the
	// sender converges on the persisted message. The temp id rides along
	// for optimistic-entry reconciliation.
	broadcast := *msg
	broadcast.TempID = in.TempID
	if payload, err := protocol.Encode(protocol.EventReceiveMessage, "", broadcast); err == nil {
		ctl.hub.Broadcast(in.ChatID, payload, "")
	}

	ctl.maybeDeliver(ctx, conn, msg, in.TempID)
}

// maybeDeliver upgrades the message to delivered right away when the peer
// has at least one open connection.
func (ctl *ChatSocketController) maybeDeliver(ctx context.Context, conn *realtime.Connection, msg *chat.Message, tempID string) {
	recipient, err := chat.Other(msg.ChatID, msg.SenderID)
	if err != nil {
		return
	}
	online, err := ctl.tracker.IsOnline(ctx, recipient)
	if err != nil {
		ctl.logger.Warn("presence query failed", "userId", recipient, "error", err)
		return
	}
	if !online {
		return
	}

	now := time.Now().UTC()
	advanced, err := ctl.store.UpdateStatus(ctx, msg.ID, chat.StatusDelivered, now)
	if err != nil {
		ctl.logger.Error("delivered update failed", "messageId", msg.ID, "error", err)
		return
	}
	if !advanced {
		return
	}

	ctl.push(conn, protocol.EventStatusUpdate, protocol.StatusUpdate{
		MessageID: msg.ID,
		TempID:    tempID,
		Status:    chat.StatusDelivered,
		Timestamp: now.Format(time.RFC3339),
	})
}

func (ctl *ChatSocketController) handleTyping(conn *realtime.Connection, id auth.Identity, frame protocol.Frame, typing bool) {
	var ref protocol.ChatRef
	if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.ChatID == "" {
		return
	}

	event := protocol.EventUserTyping
	data := protocol.Typing{UserID: id.UserID, UserRole: id.Role}
	if !typing {
		event = protocol.EventUserStopTyping
		data = protocol.Typing{UserID: id.UserID}
	}
	// Fire and forget: no persistence, no ack.
	if payload, err := protocol.Encode(event, "", data); err == nil {
		ctl.hub.Broadcast(ref.ChatID, payload, id.UserID)
	}
}

func (ctl *ChatSocketController) handleRead(c *gin.Context, conn *realtime.Connection, id auth.Identity, frame protocol.Frame) {
	var ref protocol.ChatRef
	if err := json.Unmarshal(frame.Data, &ref); err != nil || ref.ChatID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	ids, err := ctl.readUC.Execute(ctx, usecase.MarkReadInput{ChatID: ref.ChatID, ReaderID: id.UserID})
	if err != nil {
		ctl.logger.Warn("mark read failed", "chatId", ref.ChatID, "userId", id.UserID, "error", err)
		return
	}
	if len(ids) > 0 {
		ctl.notifyRead(ref.ChatID, id.UserID, ids)
	}
}

func (ctl *ChatSocketController) handleLoadMore(c *gin.Context, conn *realtime.Connection, frame protocol.Frame) {
	var in protocol.LoadMore
	if err := json.Unmarshal(frame.Data, &in); err != nil || in.ChatID == "" {
		ctl.replyError(conn, "BAD_REQUEST", "chatId is required")
		return
	}
	before, err := time.Parse(time.RFC3339, in.BeforeTimestamp)
	if err != nil {
		ctl.replyError(conn, "BAD_REQUEST", "beforeTimestamp must be RFC 3339")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	msgs, err := ctl.loadUC.Execute(ctx, usecase.LoadHistoryInput{ChatID: in.ChatID, Before: before, Limit: ctl.pageSize})
	if err != nil {
		ctl.logger.Error("load more failed", "chatId", in.ChatID, "error", err)
		ctl.replyError(conn, "LOAD_FAILED", "Failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	ctl.push(conn, protocol.EventMoreMessages, msgs)
}

func (ctl *ChatSocketController) handleGetOnlineUsers(c *gin.Context, conn *realtime.Connection, frame protocol.Frame) {
	var in protocol.GetOnlineUsers
	if err := json.Unmarshal(frame.Data, &in); err != nil {
		ctl.ack(conn, frame.AckID, protocol.OnlineUsersAck{OnlineUsers: []string{}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.inflightTimeout)
	defer cancel()

	online, err := ctl.tracker.BulkOnline(ctx, in.UserIDs)
	if err != nil {
		ctl.logger.Warn("bulk presence query failed", "error", err)
		online = []string{}
	}
	if online == nil {
		online = []string{}
	}
	ctl.ack(conn, frame.AckID, protocol.OnlineUsersAck{OnlineUsers: online})
}

// notifyRead tells the room, minus the reader, which message ids were read.
func (ctl *ChatSocketController) notifyRead(chatID, readerID string, ids []string) {
	payload, err := protocol.Encode(protocol.EventMessagesRead, "", protocol.MessagesRead{
		ChatID:     chatID,
		ReaderID:   readerID,
		MessageIDs: ids,
	})
	if err == nil {
		ctl.hub.Broadcast(chatID, payload, readerID)
	}
}

func (ctl *ChatSocketController) ack(conn *realtime.Connection, ackID string, data any) {
	if ackID == "" {
		return
	}
	if payload, err := protocol.Encode(protocol.EventAck, ackID, data); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) push(conn *realtime.Connection, event string, data any) {
	if payload, err := protocol.Encode(event, "", data); err == nil {
		_ = conn.Send(payload)
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code, message string) {
	ctl.push(conn, protocol.EventError, protocol.Error{Code: code, Message: message})
}
