package ws

import "time"

// Wire events. The field names are fixed by the original web client and must
// not change.

// ChatEvent is the server-to-client event on a conversation channel.
type ChatEvent struct {
	Message        string    `json:"message"`
	SenderUsername string    `json:"sender_username"`
	Timestamp      time.Time `json:"timestamp"`
	MessageID      int64     `json:"message_id"`
}

// chatSubmission is the single client-to-server event on a conversation
// channel.
type chatSubmission struct {
	Message string `json:"message"`
}

// EventUnreadCountUpdate is the type tag of UnreadEvent.
const EventUnreadCountUpdate = "unread_count_update"

// UnreadEvent is the server-to-client event on the unread-count feed.
type UnreadEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	Count          int    `json:"count"`
}

func newUnreadEvent(conversationID int64, count int) UnreadEvent {
	return UnreadEvent{
		Type:           EventUnreadCountUpdate,
		ConversationID: conversationID,
		Count:          count,
	}
}

// ErrorEvent tells the submitting client its event was rejected. It is only
// ever sent to the offending session, never broadcast.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorEvent(msg string) ErrorEvent {
	return ErrorEvent{Type: "error", Message: msg}
}
