package sqlite

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
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?)
	`, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.IsRead)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID int64) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = ?
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
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND sender_id != ? AND is_read = 0
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
			ON cp.conversation_id = m.conversation_id AND cp.user_id = ?
		WHERE m.is_read = 0 AND m.sender_id != ?
		GROUP BY m.conversation_id
	`, userID, userID)
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
