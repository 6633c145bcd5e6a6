package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetup/internal/domain"
)

// ReadNotifier receives "conversation read" events so open unread feeds get
// the zeroed count pushed. Satisfied by ws.Tracker.
type ReadNotifier interface {
	OnConversationRead(userID, conversationID int64)
}

type ConversationService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	users         domain.UserRepository
	notifier      ReadNotifier
}

func NewConversationService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	users domain.UserRepository,
	notifier ReadNotifier,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		participants:  participants,
		messages:      messages,
		users:         users,
		notifier:      notifier,
	}
}

// StartDirect returns the existing two-party conversation between the caller
// and the other user, creating it when none exists.
func (s *ConversationService) StartDirect(ctx context.Context, callerID, otherID int64) (*domain.Conversation, error) {
	if callerID == otherID {
		return nil, errors.New("cannot start a conversation with yourself")
	}
	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if other == nil || !other.IsActive {
		return nil, domain.ErrNotFound
	}

	existing, err := s.conversations.FindDirect(ctx, callerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	conv := &domain.Conversation{}
	if err := s.conversations.Create(ctx, conv, []int64{callerID, otherID}); err != nil {
		return nil, err
	}
	return conv, nil
}

// ConversationSummary is one row of the chat home listing.
type ConversationSummary struct {
	Conversation *domain.Conversation `json:"conversation"`
	UnreadCount  int                  `json:"unread_count"`
}

// ListWithUnread returns the caller's conversations with their stored unread
// counts, most recently active first.
func (s *ConversationService) ListWithUnread(ctx context.Context, userID int64) ([]ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.messages.UnreadCountsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		res = append(res, ConversationSummary{
			Conversation: c,
			UnreadCount:  counts[c.ID],
		})
	}
	return res, nil
}

// MessageView is a message as the web client renders it; field names must
// match the realtime ChatEvent so history and live traffic look alike.
type MessageView struct {
	ID             int64     `json:"message_id"`
	Message        string    `json:"message"`
	SenderUsername string    `json:"sender_username"`
	Timestamp      time.Time `json:"timestamp"`
}

// OpenConversation returns the conversation's message history in persistence
// order and marks everything read, pushing the zeroed unread count to the
// caller's open feeds. This is the "mark read" collaborator of the messaging
// core: opening a conversation is what acknowledges its messages.
func (s *ConversationService) OpenConversation(ctx context.Context, conversationID, userID int64) ([]MessageView, error) {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	usernames := make(map[int64]string)
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		name, ok := usernames[m.SenderID]
		if !ok {
			u, err := s.users.GetByID(ctx, m.SenderID)
			if err != nil {
				return nil, fmt.Errorf("get sender: %w", err)
			}
			if u != nil {
				name = u.Username
			}
			usernames[m.SenderID] = name
		}
		views = append(views, MessageView{
			ID:             m.ID,
			Message:        m.Content,
			SenderUsername: name,
			Timestamp:      m.CreatedAt,
		})
	}

	if err := s.MarkRead(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return views, nil
}

// ConversationDetail is the conversation page payload: the conversation row
// plus its full history.
type ConversationDetail struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []MessageView        `json:"messages"`
}

// Detail returns the conversation with its history, marking it read the same
// way OpenConversation does.
func (s *ConversationService) Detail(ctx context.Context, conversationID, userID int64) (*ConversationDetail, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	views, err := s.OpenConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: views}, nil
}

// MarkRead resets the caller's unread count for the conversation to zero,
// durably and on every open unread feed.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID int64) error {
	if err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.messages.MarkAllRead(ctx, conversationID, userID); err != nil {
		return err
	}
	s.notifier.OnConversationRead(userID, conversationID)
	return nil
}

func (s *ConversationService) requireParticipant(ctx context.Context, conversationID, userID int64) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return domain.ErrNotFound
	}
	ok, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return domain.ErrNotParticipant
	}
	return nil
}
