package ws

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"meetup/internal/domain"
)

// Router accepts inbound messages from conversation sessions, persists them,
// updates unread counts, and fans them out. Persist-before-fan-out is
// mandatory: a message that failed to persist is never broadcast or counted.
//
// Submissions to the same conversation are serialized by a per-conversation
// mutex, so persisted ids and observed broadcast order always agree; different
// conversations share nothing and proceed in parallel.
type Router struct {
	messages      domain.MessageRepository
	participants  domain.ParticipantRepository
	conversations domain.ConversationRepository
	registry      *Registry
	tracker       *Tracker

	mu        sync.Mutex
	convLocks map[int64]*convLock
}

// convLock is a refcounted per-conversation mutex. The refcount covers
// holders and waiters, so the map entry is dropped as soon as the last one
// releases it and the map does not grow with every conversation ever
// messaged.
type convLock struct {
	mu   sync.Mutex
	refs int
}

func NewRouter(
	messages domain.MessageRepository,
	participants domain.ParticipantRepository,
	conversations domain.ConversationRepository,
	registry *Registry,
	tracker *Tracker,
) *Router {
	return &Router{
		messages:      messages,
		participants:  participants,
		conversations: conversations,
		registry:      registry,
		tracker:       tracker,
		convLocks:     make(map[int64]*convLock),
	}
}

func (r *Router) lockConversation(conversationID int64) *convLock {
	r.mu.Lock()
	l, ok := r.convLocks[conversationID]
	if !ok {
		l = &convLock{}
		r.convLocks[conversationID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return l
}

func (r *Router) unlockConversation(conversationID int64, l *convLock) {
	l.mu.Unlock()

	r.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(r.convLocks, conversationID)
	}
	r.mu.Unlock()
}

// Submit routes one message from the given session: validate, persist with a
// server-assigned timestamp, count for every participant except the sender,
// then broadcast to every session on the conversation. The sender's own
// sessions are deliberately not excluded from the broadcast, so multi-tab
// views stay consistent; the reply to the submitting session is just one of
// the fan-out deliveries.
func (r *Router) Submit(ctx context.Context, s *Session, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrEmptyMessage
	}
	if s.Channel.Kind != ChannelConversation {
		return nil, fmt.Errorf("%w: submit on a non-conversation session", domain.ErrProtocol)
	}
	conversationID := s.Channel.ConversationID

	l := r.lockConversation(conversationID)
	defer r.unlockConversation(conversationID, l)

	// The generation snapshot must precede the insert: a feed sync landing
	// between them reads the message from storage, and the commit then defers
	// to that sync instead of incrementing a second time.
	participantIDs, err := r.participants.ListParticipantIDs(ctx, conversationID)
	var pending *PendingCount
	if err != nil {
		// The message can still reach live viewers; only counting is skipped.
		log.Printf("ws: list participants for conversation %d: %v", conversationID, err)
	} else {
		pending = r.tracker.BeginMessage(conversationID, s.User.ID, participantIDs)
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       s.User.ID,
		Content:        body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	if err := r.conversations.Touch(ctx, conversationID); err != nil {
		log.Printf("ws: touch conversation %d: %v", conversationID, err)
	}

	if pending != nil {
		pending.Commit(ctx)
	}

	r.registry.Broadcast(conversationID, ChatEvent{
		Message:        msg.Content,
		SenderUsername: s.User.Username,
		Timestamp:      msg.CreatedAt,
		MessageID:      msg.ID,
	})

	return msg, nil
}
