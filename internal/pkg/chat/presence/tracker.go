// Package presence tracks which identities currently hold at least one open
// connection. An identity may be connected from several devices at once; the
// online/offline transition fires only on the first connect and the last
// disconnect.
package presence

import (
	"context"
	"sync"
)

// Tracker is the presence port. The in-process MemoryTracker is the default;
// RedisTracker backs the same contract with a shared store for multi-process
// deployments.
type Tracker interface {
	// AddConnection registers connID for userID and reports whether this is
	// the identity's first open connection (the online transition).
	AddConnection(ctx context.Context, userID, connID string) (bool, error)

	// RemoveConnection drops connID and reports whether it was the last open
	// connection (the offline transition). Removing an unknown connection is
	// a no-op: disconnect handlers may fire more than once.
	RemoveConnection(ctx context.Context, userID, connID string) (bool, error)

	// IsOnline reports whether userID has at least one open connection.
	IsOnline(ctx context.Context, userID string) (bool, error)

	// BulkOnline filters userIDs down to the currently online subset.
	BulkOnline(ctx context.Context, userIDs []string) ([]string, error)
}

// MemoryTracker keeps the identity -> connection-set map in process memory.
// All mutation happens under a single mutex; connect and disconnect events
// for the same identity may arrive concurrently from different connections.
type MemoryTracker struct {
	mu          sync.Mutex
	connections map[string]map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{connections: make(map[string]map[string]struct{})}
}

var _ Tracker = (*MemoryTracker)(nil)

func (t *MemoryTracker) AddConnection(_ context.Context, userID, connID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.connections[userID]
	if !ok {
		set = make(map[string]struct{})
		t.connections[userID] = set
	}
	set[connID] = struct{}{}
	return !ok, nil
}

func (t *MemoryTracker) RemoveConnection(_ context.Context, userID, connID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.connections[userID]
	if !ok {
		return false, nil
	}
	if _, ok := set[connID]; !ok {
		return false, nil
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(t.connections, userID)
		return true, nil
	}
	return false, nil
}

func (t *MemoryTracker) IsOnline(_ context.Context, userID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connections[userID]) > 0, nil
}

func (t *MemoryTracker) BulkOnline(_ context.Context, userIDs []string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	online := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if len(t.connections[id]) > 0 {
			online = append(online, id)
		}
	}
	return online, nil
}
