package domain

import "time"

// User represents an application user. Identity is owned by the auth layer;
// the messaging core treats it as an immutable reference.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	Email          *string   `db:"email" json:"email,omitempty"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	Bio            *string   `db:"bio" json:"bio,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	IsOnline       bool      `db:"is_online" json:"is_online"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastSeen       time.Time `db:"last_seen" json:"last_seen"`
}

// Conversation is a persistent thread of messages among a fixed set of
// participants. Membership lives in the conversation_participants table.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message is a single chat message. Immutable once persisted; ordering within
// a conversation is the persistence order of the monotonic id, not client
// send wall-clock order.
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	SenderID       int64     `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	IsRead         bool      `db:"is_read" json:"is_read"`
}

// Activity is an event a user organizes. Only the create submission is served
// by this backend; listing, search and sort stay in the web frontend.
type Activity struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Category        string    `db:"category" json:"category"`
	DateTime        time.Time `db:"date_time" json:"date_time"`
	Location        string    `db:"location" json:"location"`
	MaxParticipants int       `db:"max_participants" json:"max_participants"`
	Status          string    `db:"status" json:"status"`
}
