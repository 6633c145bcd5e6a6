package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meetup/internal/domain"
)

type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) Create(ctx context.Context, c *domain.Conversation, participantIDs []int64) error {
	args := m.Called(ctx, c, participantIDs)
	return args.Error(0)
}

func (m *MockConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	conv, _ := args.Get(0).(*domain.Conversation)
	return conv, args.Error(1)
}

func (m *MockConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	convs, _ := args.Get(0).([]*domain.Conversation)
	return convs, args.Error(1)
}

func (m *MockConversationRepo) FindDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	conv, _ := args.Get(0).(*domain.Conversation)
	return conv, args.Error(1)
}

func (m *MockConversationRepo) Touch(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockParticipantRepo struct {
	mock.Mock
}

func (m *MockParticipantRepo) ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *MockParticipantRepo) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) ListForConversation(ctx context.Context, conversationID int64) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID)
	msgs, _ := args.Get(0).([]*domain.Message)
	return msgs, args.Error(1)
}

func (m *MockMessageRepo) MarkAllRead(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MockMessageRepo) UnreadCountsForUser(ctx context.Context, userID int64) (map[int64]int, error) {
	args := m.Called(ctx, userID)
	counts, _ := args.Get(0).(map[int64]int)
	return counts, args.Error(1)
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *MockUserRepo) ListActive(ctx context.Context, excludeID int64) ([]*domain.User, error) {
	args := m.Called(ctx, excludeID)
	users, _ := args.Get(0).([]*domain.User)
	return users, args.Error(1)
}

func (m *MockUserRepo) SetOnlineStatus(ctx context.Context, id int64, isOnline bool) error {
	args := m.Called(ctx, id, isOnline)
	return args.Error(0)
}

type recordingNotifier struct {
	reads [][2]int64 // userID, conversationID
}

func (n *recordingNotifier) OnConversationRead(userID, conversationID int64) {
	n.reads = append(n.reads, [2]int64{userID, conversationID})
}

type conversationMocks struct {
	conversations *MockConversationRepo
	participants  *MockParticipantRepo
	messages      *MockMessageRepo
	users         *MockUserRepo
	notifier      *recordingNotifier
}

func newConversationService() (*ConversationService, *conversationMocks) {
	m := &conversationMocks{
		conversations: new(MockConversationRepo),
		participants:  new(MockParticipantRepo),
		messages:      new(MockMessageRepo),
		users:         new(MockUserRepo),
		notifier:      &recordingNotifier{},
	}
	svc := NewConversationService(m.conversations, m.participants, m.messages, m.users, m.notifier)
	return svc, m
}

func activeUser(id int64, username string) *domain.User {
	return &domain.User{ID: id, Username: username, IsActive: true}
}

func TestStartDirectReusesExistingConversation(t *testing.T) {
	svc, m := newConversationService()
	existing := &domain.Conversation{ID: 7}

	m.users.On("GetByID", mock.Anything, int64(2)).Return(activeUser(2, "bob"), nil)
	m.conversations.On("FindDirect", mock.Anything, int64(1), int64(2)).Return(existing, nil)

	conv, err := svc.StartDirect(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, existing, conv)
	m.conversations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartDirectCreatesWhenMissing(t *testing.T) {
	svc, m := newConversationService()

	m.users.On("GetByID", mock.Anything, int64(2)).Return(activeUser(2, "bob"), nil)
	m.conversations.On("FindDirect", mock.Anything, int64(1), int64(2)).Return(nil, nil)
	m.conversations.On("Create", mock.Anything, mock.Anything, []int64{1, 2}).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Conversation).ID = 42
		}).
		Return(nil)

	conv, err := svc.StartDirect(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), conv.ID)
	m.conversations.AssertExpectations(t)
}

func TestStartDirectRejectsSelf(t *testing.T) {
	svc, _ := newConversationService()
	_, err := svc.StartDirect(context.Background(), 1, 1)
	assert.Error(t, err)
}

func TestStartDirectRejectsInactiveUser(t *testing.T) {
	svc, m := newConversationService()
	inactive := &domain.User{ID: 2, Username: "bob", IsActive: false}
	m.users.On("GetByID", mock.Anything, int64(2)).Return(inactive, nil)

	_, err := svc.StartDirect(context.Background(), 1, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListWithUnreadJoinsCounts(t *testing.T) {
	svc, m := newConversationService()
	convs := []*domain.Conversation{{ID: 7}, {ID: 9}}

	m.conversations.On("ListForUser", mock.Anything, int64(2)).Return(convs, nil)
	m.messages.On("UnreadCountsForUser", mock.Anything, int64(2)).Return(map[int64]int{7: 3}, nil)

	summaries, err := svc.ListWithUnread(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 3, summaries[0].UnreadCount)
	assert.Equal(t, 0, summaries[1].UnreadCount, "conversations without unread report zero")
}

func TestOpenConversationMarksReadAndNotifies(t *testing.T) {
	svc, m := newConversationService()
	now := time.Now().UTC()
	msgs := []*domain.Message{
		{ID: 1, ConversationID: 7, SenderID: 1, Content: "hi", CreatedAt: now},
		{ID: 2, ConversationID: 7, SenderID: 1, Content: "there", CreatedAt: now},
	}

	m.conversations.On("GetByID", mock.Anything, int64(7)).Return(&domain.Conversation{ID: 7}, nil)
	m.participants.On("IsParticipant", mock.Anything, int64(7), int64(2)).Return(true, nil)
	m.messages.On("ListForConversation", mock.Anything, int64(7)).Return(msgs, nil)
	m.users.On("GetByID", mock.Anything, int64(1)).Return(activeUser(1, "alice"), nil)
	m.messages.On("MarkAllRead", mock.Anything, int64(7), int64(2)).Return(nil)

	views, err := svc.OpenConversation(context.Background(), 7, 2)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(1), views[0].ID)
	assert.Equal(t, "hi", views[0].Message)
	assert.Equal(t, "alice", views[0].SenderUsername)

	// The sender username is cached; one lookup serves both messages.
	m.users.AssertNumberOfCalls(t, "GetByID", 1)

	m.messages.AssertCalled(t, "MarkAllRead", mock.Anything, int64(7), int64(2))
	require.Len(t, m.notifier.reads, 1)
	assert.Equal(t, [2]int64{2, 7}, m.notifier.reads[0])
}

func TestDetailBundlesConversationAndHistory(t *testing.T) {
	svc, m := newConversationService()
	conv := &domain.Conversation{ID: 7}
	msgs := []*domain.Message{
		{ID: 1, ConversationID: 7, SenderID: 1, Content: "hi", CreatedAt: time.Now().UTC()},
	}

	m.conversations.On("GetByID", mock.Anything, int64(7)).Return(conv, nil)
	m.participants.On("IsParticipant", mock.Anything, int64(7), int64(2)).Return(true, nil)
	m.messages.On("ListForConversation", mock.Anything, int64(7)).Return(msgs, nil)
	m.users.On("GetByID", mock.Anything, int64(1)).Return(activeUser(1, "alice"), nil)
	m.messages.On("MarkAllRead", mock.Anything, int64(7), int64(2)).Return(nil)

	detail, err := svc.Detail(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.Equal(t, conv, detail.Conversation)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "hi", detail.Messages[0].Message)
	require.Len(t, m.notifier.reads, 1)
}

func TestOpenConversationRejectsNonParticipant(t *testing.T) {
	svc, m := newConversationService()

	m.conversations.On("GetByID", mock.Anything, int64(7)).Return(&domain.Conversation{ID: 7}, nil)
	m.participants.On("IsParticipant", mock.Anything, int64(7), int64(9)).Return(false, nil)

	_, err := svc.OpenConversation(context.Background(), 7, 9)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)
	m.messages.AssertNotCalled(t, "ListForConversation", mock.Anything, mock.Anything)
	assert.Empty(t, m.notifier.reads)
}

func TestMarkReadUnknownConversation(t *testing.T) {
	svc, m := newConversationService()

	m.conversations.On("GetByID", mock.Anything, int64(99)).Return(nil, nil)

	err := svc.MarkRead(context.Background(), 99, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, m.notifier.reads)
}
