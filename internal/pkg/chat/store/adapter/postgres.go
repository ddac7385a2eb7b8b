package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	chat "github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/domain"
	"github.com/QNhatCNTT/employee-task-management/internal/pkg/chat/store/port"
)

// PgMessageStore persists channel messages in the chat.message table. The
// status monotonicity guard lives in the UPDATE statements themselves so
// concurrent writers cannot regress a message through read-then-write races.
type PgMessageStore struct {
	pool *pgxpool.Pool
}

func NewPgMessageStore(pool *pgxpool.Pool) *PgMessageStore {
	return &PgMessageStore{pool: pool}
}

var _ port.MessageStore = (*PgMessageStore)(nil)

func (s *PgMessageStore) Save(ctx context.Context, m chat.Message) (string, error) {
	if s == nil || s.pool == nil {
		return "", errors.New("PgMessageStore: nil pool")
	}
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chat.message (chat_id, sender_id, sender_role, content, status, created_at)
		VALUES ($1, $2, $3, $4, 'sent', $5)
		RETURNING id::text
	`, m.ChatID, m.SenderID, m.SenderRole, m.Content, m.CreatedAt).Scan(&id)
	return id, err
}

const messageColumns = `id::text, chat_id, sender_id, sender_role, content, status, created_at, delivered_at, read_at`

func (s *PgMessageStore) History(ctx context.Context, chatID string, limit int) ([]chat.Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat.message
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, chatID, limit)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (s *PgMessageStore) Before(ctx context.Context, chatID string, before time.Time, limit int) ([]chat.Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat.message
		WHERE chat_id = $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, chatID, before, limit)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (s *PgMessageStore) MarkRead(ctx context.Context, chatID, readerID string, at time.Time) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	rows, err := s.pool.Query(ctx, `
		UPDATE chat.message
		SET status = 'read',
		    read_at = $3,
		    delivered_at = COALESCE(delivered_at, $3)
		WHERE chat_id = $1 AND sender_id <> $2 AND status <> 'read'
		RETURNING id::text
	`, chatID, readerID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PgMessageStore) UpdateStatus(ctx context.Context, id string, status chat.Status, at time.Time) (bool, error) {
	if s == nil || s.pool == nil {
		return false, errors.New("PgMessageStore: nil pool")
	}
	if !status.Valid() || status == chat.StatusSending {
		return false, errors.New("PgMessageStore: status is not persistable")
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE chat.message
		SET status = $2,
		    delivered_at = CASE WHEN $2 = 'delivered' THEN $3 ELSE delivered_at END,
		    read_at = CASE WHEN $2 = 'read' THEN $3 ELSE read_at END
		WHERE id = $1::uuid
		  AND (CASE status WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END)
		    < (CASE $2 WHEN 'sent' THEN 1 WHEN 'delivered' THEN 2 WHEN 'read' THEN 3 ELSE 0 END)
	`, id, status, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *PgMessageStore) UndeliveredTo(ctx context.Context, userID string, limit int) ([]chat.Message, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("PgMessageStore: nil pool")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat.message
		WHERE status = 'sent'
		  AND sender_id <> $1
		  AND (split_part(chat_id, '_', 1) = $1 OR split_part(chat_id, '_', 2) = $1)
		ORDER BY created_at ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (s *PgMessageStore) UnreadCount(ctx context.Context, chatID string) (int, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("PgMessageStore: nil pool")
	}
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM chat.message WHERE chat_id = $1 AND status <> 'read'
	`, chatID).Scan(&n)
	return n, err
}

func scanMessages(rows pgx.Rows) ([]chat.Message, error) {
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderRole, &m.Content,
			&m.Status, &m.CreatedAt, &m.DeliveredAt, &m.ReadAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func reverse(msgs []chat.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
