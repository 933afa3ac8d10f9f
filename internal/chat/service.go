package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
)

const defaultPageSize = 50

type Config struct {
	DB *pgxpool.Pool
}

// Service is the durable message log behind the relay. The relay is a
// low-latency nudge layer; this log is the source of truth for
// history.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

// Append persists one message and returns it with id and timestamp
// assigned.
func (s *Service) Append(ctx context.Context, senderID, receiverID, content string) (*domain.ChatMessage, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate message ID: %w", err)
	}

	msg := &domain.ChatMessage{
		MessageID:  id.String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreateTime: time.Now(),
	}

	const stmt = `
INSERT INTO chat_messages (message_id, sender_id, receiver_id, content, create_time)
VALUES ($1, $2, $3, $4, $5);`

	_, err = s.db.Exec(ctx, stmt, msg.MessageID, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

type HistoryRequest struct {
	UserID string
	PeerID string
	// Before bounds the page; zero means "from now".
	Before time.Time
	Limit  int
}

// History pages the conversation newest-first; clients reverse the
// page for display.
func (s *Service) History(ctx context.Context, req HistoryRequest) ([]domain.ChatMessage, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultPageSize
	}

	before := req.Before
	if before.IsZero() {
		before = time.Now()
	}

	const stmt = `
SELECT message_id, sender_id, receiver_id, content, create_time
FROM chat_messages
WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
  AND create_time < $3
ORDER BY create_time DESC
LIMIT $4;`

	rows, err := s.db.Query(ctx, stmt, req.UserID, req.PeerID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.ChatMessage, error) {
		var m domain.ChatMessage
		if err := r.Scan(&m.MessageID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreateTime); err != nil {
			return domain.ChatMessage{}, err
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return msgs, nil
}

// Delete removes a message. Only the sender may delete.
func (s *Service) Delete(ctx context.Context, messageID, requesterID string) error {
	const stmt = `DELETE FROM chat_messages WHERE message_id = $1 AND sender_id = $2;`

	tag, err := s.db.Exec(ctx, stmt, messageID, requesterID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("message not found or not owned: %s", messageID))
	}

	return nil
}
