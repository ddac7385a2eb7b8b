// Package client is the Go client for the chat websocket protocol. It keeps
// the optimistic local view of each conversation, reconciles temp ids with
// server-assigned ids, and retries messages queued while disconnected.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/presentation/protocol"
)

var (
	ErrNotConnected = errors.New("client: not connected")
	ErrAckTimeout   = errors.New("client: acknowledgment timed out")
)

// Events are optional callbacks fired from the read loop. Handlers must not
// block; the loop processes one frame at a time.
type Events struct {
	OnMessage      func(chat.Message)
	OnStatus       func(protocol.StatusUpdate)
	OnMessagesRead func(protocol.MessagesRead)
	OnTyping       func(user protocol.Typing, typing bool)
	OnPresence     func(userID string, online bool)
	OnError        func(protocol.Error)
	OnDisconnect   func(error)
}

// Options configures a Client.
type Options struct {
	URL    string // websocket endpoint, e.g. ws://host/api/v1/chat/ws
	Token  string // bearer credential presented during the handshake
	UserID string
	Role   chat.Role

	// QueuePath persists the offline queue; empty keeps it memory-only.
	QueuePath     string
	QueueCapacity int

	AckTimeout time.Duration
	Logger     *slog.Logger
	Events     Events
}

// Client is a single-identity chat connection with offline resilience.
type Client struct {
	opts       Options
	ackTimeout time.Duration
	logger     *slog.Logger
	queue      *Queue

	mu            sync.Mutex
	conn          *websocket.Conn
	writeMu       sync.Mutex
	connected     bool
	conversations map[string]*Conversation
	pending       map[string]chan protocol.Frame

	onlineMu sync.Mutex
	online   map[string]struct{}
}

func New(opts Options) *Client {
	ackTimeout := opts.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:          opts,
		ackTimeout:    ackTimeout,
		logger:        logger.With("component", "chat-client"),
		queue:         NewQueue(opts.QueuePath, opts.QueueCapacity),
		conversations: make(map[string]*Conversation),
		pending:       make(map[string]chan protocol.Frame),
		online:        make(map[string]struct{}),
	}
}

// Queue exposes the offline retry queue.
func (c *Client) Queue() *Queue { return c.queue }

// Conversation returns (creating if needed) the local view of a channel.
func (c *Client) Conversation(chatID string) *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[chatID]
	if !ok {
		conv = NewConversation(chatID)
		c.conversations[chatID] = conv
	}
	return conv
}

// Connect dials the server, starts the read loop and re-submits every
// queued entry not already in flight.
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.opts.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("client: dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("client: dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	go c.flushQueue()
	return nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Join subscribes to a channel and waits for the server acknowledgment. The
// history replay arrives asynchronously as a message-history event.
func (c *Client) Join(ctx context.Context, chatID string) error {
	resp, err := c.request(ctx, protocol.EventJoinChat, uuid.NewString(), protocol.ChatRef{ChatID: chatID})
	if err != nil {
		return err
	}
	var ack protocol.JoinAck
	if err := json.Unmarshal(resp.Data, &ack); err != nil {
		return fmt.Errorf("client: decode join ack: %w", err)
	}
	if !ack.Success {
		return fmt.Errorf("client: join %s refused", chatID)
	}
	return nil
}

// Leave unsubscribes from a channel; no acknowledgment is expected.
func (c *Client) Leave(chatID string) error {
	return c.emit(protocol.EventLeaveChat, "", protocol.ChatRef{ChatID: chatID})
}

// Send performs an optimistic send: the message is inserted locally in
// sending state and queued, then submitted when a connection is available.
// Empty or whitespace-only content is rejected before anything is queued or
// sent.
func (c *Client) Send(chatID, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", chat.ErrEmptyContent
	}

	entry := c.queue.Enqueue(chatID, content)
	c.Conversation(chatID).AddOptimistic(entry.TempID, c.opts.UserID, c.opts.Role, content)

	if c.IsConnected() {
		go c.submit(entry)
	}
	return entry.TempID, nil
}

// Typing and StopTyping are fire-and-forget indicator events.
func (c *Client) Typing(chatID string) error {
	return c.emit(protocol.EventTyping, "", protocol.ChatRef{ChatID: chatID})
}

func (c *Client) StopTyping(chatID string) error {
	return c.emit(protocol.EventStopTyping, "", protocol.ChatRef{ChatID: chatID})
}

// NewTypingDebouncer wires the 2-second quiet-period debounce to this
// client for the given channel.
func (c *Client) NewTypingDebouncer(chatID string) *TypingDebouncer {
	return NewTypingDebouncer(TypingQuietPeriod,
		func() { _ = c.Typing(chatID) },
		func() { _ = c.StopTyping(chatID) },
	)
}

// MarkRead reports that the user has read the channel.
func (c *Client) MarkRead(chatID string) error {
	return c.emit(protocol.EventMessageRead, "", protocol.ChatRef{ChatID: chatID})
}

// LoadMore requests the page of messages older than the cursor; the result
// arrives as a more-messages event and is prepended to the conversation.
func (c *Client) LoadMore(chatID string, before time.Time) error {
	return c.emit(protocol.EventLoadMore, "", protocol.LoadMore{
		ChatID:          chatID,
		BeforeTimestamp: before.UTC().Format(time.RFC3339),
	})
}

// OnlineUsers answers the batched presence query through an acknowledgment.
func (c *Client) OnlineUsers(ctx context.Context, userIDs []string) ([]string, error) {
	resp, err := c.request(ctx, protocol.EventGetOnlineUsers, uuid.NewString(), protocol.GetOnlineUsers{UserIDs: userIDs})
	if err != nil {
		return nil, err
	}
	var ack protocol.OnlineUsersAck
	if err := json.Unmarshal(resp.Data, &ack); err != nil {
		return nil, fmt.Errorf("client: decode online users ack: %w", err)
	}
	c.onlineMu.Lock()
	for _, id := range ack.OnlineUsers {
		c.online[id] = struct{}{}
	}
	c.onlineMu.Unlock()
	return ack.OnlineUsers, nil
}

// IsOnline reports the last observed presence of a user.
func (c *Client) IsOnline(userID string) bool {
	c.onlineMu.Lock()
	defer c.onlineMu.Unlock()
	_, ok := c.online[userID]
	return ok
}

// flushQueue re-submits every queued entry not already in flight. Runs on
// each (re)connection.
func (c *Client) flushQueue() {
	for _, entry := range c.queue.Pending() {
		c.submit(entry)
	}
}

// submit sends one queued entry and resolves its fate from the ack. The
// in-flight marker guarantees a single outstanding attempt per entry;
// failure leaves the entry queued for the next connection event.
func (c *Client) submit(entry QueuedMessage) {
	if !c.queue.MarkInFlight(entry.TempID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.ackTimeout)
	defer cancel()

	resp, err := c.request(ctx, protocol.EventSendMessage, entry.TempID, protocol.SendMessage{
		ChatID:  entry.ChatID,
		Content: entry.Content,
		TempID:  entry.TempID,
	})
	if err != nil {
		c.logger.Warn("send attempt failed", "tempId", entry.TempID, "error", err)
		c.queue.ClearInFlight(entry.TempID)
		return
	}

	var ack protocol.SendAck
	if err := json.Unmarshal(resp.Data, &ack); err != nil || !ack.Success {
		c.logger.Warn("send rejected", "tempId", entry.TempID, "error", ack.Error)
		c.queue.ClearInFlight(entry.TempID)
		return
	}
	c.queue.Remove(entry.TempID)
}

// request sends a frame and waits for the matching ack, resolving as a
// local failure when no response arrives in time. The ack timeout applies
// through the context deadline; callers that already carry a deadline keep
// theirs.
func (c *Client) request(ctx context.Context, event, ackID string, data any) (protocol.Frame, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ackTimeout)
		defer cancel()
	}

	ch := make(chan protocol.Frame, 1)
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return protocol.Frame{}, ErrNotConnected
	}
	c.pending[ackID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, ackID)
		c.mu.Unlock()
	}()

	if err := c.emit(event, ackID, data); err != nil {
		return protocol.Frame{}, err
	}

	select {
	case frame, ok := <-ch:
		if !ok {
			return protocol.Frame{}, ErrNotConnected
		}
		return frame, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return protocol.Frame{}, ErrAckTimeout
		}
		return protocol.Frame{}, ctx.Err()
	}
}

func (c *Client) emit(event, ackID string, data any) error {
	payload, err := protocol.Encode(event, ackID, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	var loopErr error
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			loopErr = err
			break
		}
		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("malformed frame", "error", err)
			continue
		}
		c.dispatch(frame)
	}
	c.handleDisconnect(conn, loopErr)
}

func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	// Outstanding requests resolve as local failures.
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if c.opts.Events.OnDisconnect != nil {
		c.opts.Events.OnDisconnect(cause)
	}
}

func (c *Client) dispatch(frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventConnected:
		// Handshake confirmation; nothing to reconcile.

	case protocol.EventAck:
		c.mu.Lock()
		ch, ok := c.pending[frame.AckID]
		c.mu.Unlock()
		if ok {
			ch <- frame
		}

	case protocol.EventMessageHistory, protocol.EventMoreMessages:
		var msgs []chat.Message
		if err := json.Unmarshal(frame.Data, &msgs); err != nil {
			return
		}
		if len(msgs) == 0 {
			return
		}
		conv := c.Conversation(msgs[0].ChatID)
		if frame.Event == protocol.EventMessageHistory {
			conv.ApplyHistory(msgs)
		} else {
			conv.Prepend(msgs)
		}

	case protocol.EventReceiveMessage:
		var msg chat.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return
		}
		c.Conversation(msg.ChatID).ApplyIncoming(msg)
		if c.opts.Events.OnMessage != nil {
			c.opts.Events.OnMessage(msg)
		}

	case protocol.EventStatusUpdate:
		var update protocol.StatusUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			return
		}
		c.mu.Lock()
		convs := make([]*Conversation, 0, len(c.conversations))
		for _, conv := range c.conversations {
			convs = append(convs, conv)
		}
		c.mu.Unlock()
		for _, conv := range convs {
			if conv.ApplyStatus(update) {
				break
			}
		}
		if c.opts.Events.OnStatus != nil {
			c.opts.Events.OnStatus(update)
		}

	case protocol.EventMessagesRead:
		var read protocol.MessagesRead
		if err := json.Unmarshal(frame.Data, &read); err != nil {
			return
		}
		c.Conversation(read.ChatID).ApplyRead(read.MessageIDs)
		if c.opts.Events.OnMessagesRead != nil {
			c.opts.Events.OnMessagesRead(read)
		}

	case protocol.EventUserTyping, protocol.EventUserStopTyping:
		var typing protocol.Typing
		if err := json.Unmarshal(frame.Data, &typing); err != nil {
			return
		}
		if c.opts.Events.OnTyping != nil {
			c.opts.Events.OnTyping(typing, frame.Event == protocol.EventUserTyping)
		}

	case protocol.EventUserOnline, protocol.EventUserOffline:
		var p protocol.Presence
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.setOnline(p.UserID, frame.Event == protocol.EventUserOnline)

	case protocol.EventPresenceUpdate:
		var p protocol.PresenceUpdate
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.setOnline(p.UserID, p.IsOnline)

	case protocol.EventError:
		var e protocol.Error
		if err := json.Unmarshal(frame.Data, &e); err != nil {
			return
		}
		if c.opts.Events.OnError != nil {
			c.opts.Events.OnError(e)
		}
	}
}

func (c *Client) setOnline(userID string, online bool) {
	c.onlineMu.Lock()
	if online {
		c.online[userID] = struct{}{}
	} else {
		delete(c.online, userID)
	}
	c.onlineMu.Unlock()

	if c.opts.Events.OnPresence != nil {
		c.opts.Events.OnPresence(userID, online)
	}
}
