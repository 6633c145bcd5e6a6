package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"meetup/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.IsRead).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.Content,
			&m.CreatedAt,
			&m.IsRead,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *MessageRepo) MarkAllRead(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id != $2 AND is_read = FALSE
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (r *MessageRepo) UnreadCountsForUser(ctx context.Context, userID int64) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.conversation_id, COUNT(*)
		FROM messages m
		JOIN conversation_participants cp
			ON cp.conversation_id = m.conversation_id AND cp.user_id = $1
		WHERE m.is_read = FALSE AND m.sender_id != $1
		GROUP BY m.conversation_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var convID int64
		var count int
		if err := rows.Scan(&convID, &count); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts[convID] = count
	}
	return counts, rows.Err()
}
