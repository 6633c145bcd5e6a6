package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ListActive(ctx context.Context, excludeID int64) ([]*User, error)
	SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	Create(ctx context.Context, c *Conversation, participantIDs []int64) error
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*Conversation, error)
	// FindDirect returns the existing two-party conversation between the given
	// users, or nil when none exists.
	FindDirect(ctx context.Context, userA, userB int64) (*Conversation, error)
	Touch(ctx context.Context, id int64) error
}

// ParticipantRepository defines operations around conversation participants.
type ParticipantRepository interface {
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// MessageRepository is the append/read storage behind the message router.
// Create assigns the monotonic id; CreatedAt is set by the caller before the
// insert so the broadcast carries the exact persisted timestamp.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListForConversation(ctx context.Context, conversationID int64) ([]*Message, error)
	// MarkAllRead flags every message in the conversation not sent by userID
	// as read.
	MarkAllRead(ctx context.Context, conversationID, userID int64) error
	// UnreadCountsForUser returns, per conversation the user participates in,
	// the number of unread messages not sent by the user. Conversations with
	// zero unread are omitted.
	UnreadCountsForUser(ctx context.Context, userID int64) (map[int64]int, error)
}

// ActivityRepository defines persistence for the activity create surface.
type ActivityRepository interface {
	Create(ctx context.Context, a *Activity) error
}
