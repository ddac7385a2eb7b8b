package realtime

import (
	"sync"
)

// Hub coordinates websocket sessions and logical rooms (channels). Unlike a
// one-socket-per-user registry, the hub keeps every live connection of an
// identity so presence survives a single device disconnecting.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection            // connectionID -> connection
	userSessions map[string]map[string]struct{}    // userID -> set of connectionIDs
	rooms        map[string]map[string]*Connection // chatID -> connectionID -> connection
	sessionRooms map[string]map[string]struct{}    // connectionID -> set of chatIDs
}

// NewHub constructs an initialized Hub.
func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Connection),
		userSessions: make(map[string]map[string]struct{}),
		rooms:        make(map[string]map[string]*Connection),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// Attach registers a connection and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.sessions[conn.ID] = conn
	set := h.userSessions[conn.UserID]
	if set == nil {
		set = make(map[string]struct{})
		h.userSessions[conn.UserID] = set
	}
	set[conn.ID] = struct{}{}
	h.sessionRooms[conn.ID] = make(map[string]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach removes a connection and all of its room memberships. Detaching an
// unknown connection is a no-op.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	h.detachLocked(conn.ID)
	h.mu.Unlock()
}

// Join subscribes the connection to the channel's broadcast group.
func (h *Hub) Join(chatID string, conn *Connection) {
	h.mu.Lock()
	if _, ok := h.sessions[conn.ID]; !ok {
		h.mu.Unlock()
		return
	}

	room := h.rooms[chatID]
	if room == nil {
		room = make(map[string]*Connection)
		h.rooms[chatID] = room
	}
	room[conn.ID] = conn
	h.sessionRooms[conn.ID][chatID] = struct{}{}
	h.mu.Unlock()
}

// Leave removes the connection from the channel's broadcast group.
func (h *Hub) Leave(chatID string, conn *Connection) {
	h.mu.Lock()
	h.leaveLocked(chatID, conn.ID)
	h.mu.Unlock()
}

// Broadcast writes payload to all members of the channel room.
// excludeUserID, when non-empty, skips every connection of that user.
func (h *Hub) Broadcast(chatID string, payload []byte, excludeUserID string) int {
	h.mu.RLock()
	room := h.rooms[chatID]
	delivered := 0
	for _, conn := range room {
		if excludeUserID != "" && conn.UserID == excludeUserID {
			continue
		}
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	h.mu.RUnlock()
	return delivered
}

// BroadcastAll writes payload to every attached connection, skipping the
// excluded user. Used for presence transitions, which are global events.
func (h *Hub) BroadcastAll(payload []byte, excludeUserID string) int {
	h.mu.RLock()
	delivered := 0
	for _, conn := range h.sessions {
		if excludeUserID != "" && conn.UserID == excludeUserID {
			continue
		}
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	h.mu.RUnlock()
	return delivered
}

// NotifyUser delivers payload to every live connection of the given user so
// all of their devices stay consistent.
func (h *Hub) NotifyUser(userID string, payload []byte) bool {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.userSessions[userID]))
	for id := range h.userSessions[userID] {
		if conn := h.sessions[id]; conn != nil {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	ok := false
	for _, conn := range conns {
		if conn.Send(payload) == nil {
			ok = true
		}
	}
	return ok
}

// InRoom reports whether any connection of userID is subscribed to chatID.
func (h *Hub) InRoom(chatID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.rooms[chatID] {
		if conn.UserID == userID {
			return true
		}
	}
	return false
}

// Close terminates all tracked connections and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		sessions = append(sessions, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.userSessions = make(map[string]map[string]struct{})
	h.rooms = make(map[string]map[string]*Connection)
	h.sessionRooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(1001, "hub shutdown")
	}
}

func (h *Hub) detachLocked(connectionID string) {
	conn, ok := h.sessions[connectionID]
	if !ok {
		return
	}
	delete(h.sessions, connectionID)

	if set, ok := h.userSessions[conn.UserID]; ok {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(h.userSessions, conn.UserID)
		}
	}

	for roomID := range h.sessionRooms[connectionID] {
		h.leaveLocked(roomID, connectionID)
	}
	delete(h.sessionRooms, connectionID)
}

func (h *Hub) leaveLocked(chatID, connectionID string) {
	room := h.rooms[chatID]
	if room == nil {
		return
	}
	delete(room, connectionID)
	if len(room) == 0 {
		delete(h.rooms, chatID)
	}
	if memberships, ok := h.sessionRooms[connectionID]; ok {
		delete(memberships, chatID)
	}
}
