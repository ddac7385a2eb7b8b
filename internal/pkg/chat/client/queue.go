package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueCapacity bounds the offline queue; the oldest entries are
// evicted beyond it.
const DefaultQueueCapacity = 50

// QueuedMessage is an outbound message accepted by the user but not yet
// acknowledged by the server.
type QueuedMessage struct {
	TempID     string    `json:"tempId"`
	ChatID     string    `json:"chatId"`
	Content    string    `json:"content"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is the bounded, persisted retry queue for messages sent while
// disconnected or unacknowledged. Entries survive restarts via a JSON file.
// In-flight markers prevent a message from being submitted twice
// concurrently while a prior attempt is outstanding.
type Queue struct {
	mu       sync.Mutex
	path     string
	capacity int
	entries  []QueuedMessage
	inflight map[string]struct{}
}

// NewQueue loads the queue persisted at path, or starts empty when the file
// is missing or unreadable. An empty path keeps the queue memory-only.
func NewQueue(path string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &Queue{
		path:     path,
		capacity: capacity,
		inflight: make(map[string]struct{}),
	}
	q.load()
	return q
}

// NewTempID generates a client-side correlation id for one logical message.
func NewTempID() string {
	return fmt.Sprintf("temp_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Enqueue appends a message, evicting the oldest entry once the capacity is
// reached, and persists the new state.
func (q *Queue) Enqueue(chatID, content string) QueuedMessage {
	entry := QueuedMessage{
		TempID:     NewTempID(),
		ChatID:     chatID,
		Content:    content,
		EnqueuedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, entry)
	if len(q.entries) > q.capacity {
		evicted := q.entries[:len(q.entries)-q.capacity]
		for _, e := range evicted {
			delete(q.inflight, e.TempID)
		}
		q.entries = append([]QueuedMessage(nil), q.entries[len(q.entries)-q.capacity:]...)
	}
	q.persistLocked()
	return entry
}

// Remove deletes the entry on successful acknowledgment and clears its
// in-flight marker.
func (q *Queue) Remove(tempID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.TempID == tempID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	delete(q.inflight, tempID)
	q.persistLocked()
}

// Pending returns the queued entries not currently in flight.
func (q *Queue) Pending() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]QueuedMessage, 0, len(q.entries))
	for _, e := range q.entries {
		if _, busy := q.inflight[e.TempID]; !busy {
			out = append(out, e)
		}
	}
	return out
}

// MarkInFlight reserves the entry for one submission attempt. It reports
// false when the entry is already in flight or no longer queued.
func (q *Queue) MarkInFlight(tempID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	found := false
	for _, e := range q.entries {
		if e.TempID == tempID {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if _, busy := q.inflight[tempID]; busy {
		return false
	}
	q.inflight[tempID] = struct{}{}
	return true
}

// ClearInFlight releases the marker after a failed attempt so the next
// connection event can retry the entry.
func (q *Queue) ClearInFlight(tempID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, tempID)
}

// Len reports the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *Queue) load() {
	if q.path == "" {
		return
	}
	data, err := os.ReadFile(q.path)
	if err != nil {
		return
	}
	var entries []QueuedMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	if len(entries) > q.capacity {
		entries = entries[len(entries)-q.capacity:]
	}
	q.entries = entries
}

// persistLocked writes the queue through a temp file rename so a crash mid
// write never corrupts the persisted state. Persistence failures are
// tolerated: the queue keeps working in memory.
func (q *Queue) persistLocked() {
	if q.path == "" {
		return
	}
	data, err := json.Marshal(q.entries)
	if err != nil {
		return
	}
	tmp := q.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return
	}
	_ = os.Rename(tmp, q.path)
}
