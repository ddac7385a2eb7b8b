package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// ErrNotFound is returned by MemoryStore when a message id is unknown.
var ErrNotFound = errors.New("store: message not found")

// MemoryStore keeps messages in insertion order in process memory. It backs
// tests and DB-less development runs; insertion order is the authoritative
// message order, mirroring the store-assigned ordering contract.
type MemoryStore struct {
	mu       sync.Mutex
	messages []*chat.Message
	byID     map[string]*chat.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*chat.Message)}
}

var _ port.MessageStore = (*MemoryStore)(nil)

func (s *MemoryStore) Save(_ context.Context, m chat.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.NewString()
	m.Status = chat.StatusSent
	m.TempID = ""
	stored := m
	s.messages = append(s.messages, &stored)
	s.byID[m.ID] = &stored
	return m.ID, nil
}

func (s *MemoryStore) History(_ context.Context, chatID string, limit int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []chat.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) Before(_ context.Context, chatID string, before time.Time, limit int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []chat.Message
	for _, m := range s.messages {
		if m.ChatID == chatID && m.CreatedAt.Before(before) {
			out = append(out, *m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, chatID, readerID string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, m := range s.messages {
		if m.ChatID != chatID || m.SenderID == readerID || m.Status == chat.StatusRead {
			continue
		}
		m.Status = chat.StatusRead
		readAt := at
		m.ReadAt = &readAt
		if m.DeliveredAt == nil {
			m.DeliveredAt = &readAt
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status chat.Status, at time.Time) (bool, error) {
	if !status.Valid() || status == chat.StatusSending {
		return false, errors.New("store: status is not persistable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if !m.Status.CanAdvance(status) {
		return false, nil
	}
	m.Status = status
	stamp := at
	switch status {
	case chat.StatusDelivered:
		m.DeliveredAt = &stamp
	case chat.StatusRead:
		m.ReadAt = &stamp
		if m.DeliveredAt == nil {
			m.DeliveredAt = &stamp
		}
	}
	return true, nil
}

func (s *MemoryStore) UndeliveredTo(_ context.Context, userID string, limit int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	var out []chat.Message
	for _, m := range s.messages {
		if m.Status != chat.StatusSent || m.SenderID == userID {
			continue
		}
		peer, err := chat.Other(m.ChatID, m.SenderID)
		if err != nil || peer != userID {
			continue
		}
		out = append(out, *m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) UnreadCount(_ context.Context, chatID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.messages {
		if m.ChatID == chatID && m.Status != chat.StatusRead {
			n++
		}
	}
	return n, nil
}
