package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetup/internal/domain"
)

type memMessageRepo struct {
	mu        sync.Mutex
	nextID    int64
	messages  []*domain.Message
	createErr error
}

func (r *memMessageRepo) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	m.ID = r.nextID
	stored := *m
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *memMessageRepo) ListForConversation(_ context.Context, conversationID int64) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memMessageRepo) MarkAllRead(_ context.Context, conversationID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.SenderID != userID {
			m.IsRead = true
		}
	}
	return nil
}

func (r *memMessageRepo) UnreadCountsForUser(_ context.Context, userID int64) (map[int64]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[int64]int)
	for _, m := range r.messages {
		if !m.IsRead && m.SenderID != userID {
			counts[m.ConversationID]++
		}
	}
	return counts, nil
}

func (r *memMessageRepo) stored() []*domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

type memParticipantRepo struct {
	byConversation map[int64][]int64
	err            error
}

func (r *memParticipantRepo) ListParticipantIDs(_ context.Context, conversationID int64) ([]int64, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byConversation[conversationID], nil
}

func (r *memParticipantRepo) IsParticipant(_ context.Context, conversationID, userID int64) (bool, error) {
	for _, id := range r.byConversation[conversationID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type noopConversationRepo struct{}

func (noopConversationRepo) Create(context.Context, *domain.Conversation, []int64) error {
	return nil
}
func (noopConversationRepo) GetByID(context.Context, int64) (*domain.Conversation, error) {
	return nil, domain.ErrNotFound
}
func (noopConversationRepo) ListForUser(context.Context, int64) ([]*domain.Conversation, error) {
	return nil, nil
}
func (noopConversationRepo) FindDirect(context.Context, int64, int64) (*domain.Conversation, error) {
	return nil, nil
}
func (noopConversationRepo) Touch(context.Context, int64) error { return nil }

type routerFixture struct {
	messages *memMessageRepo
	registry *Registry
	tracker  *Tracker
	router   *Router
}

func newRouterFixture(participants map[int64][]int64) *routerFixture {
	messages := &memMessageRepo{}
	registry := NewRegistry()
	tracker := NewTracker(messages)
	return &routerFixture{
		messages: messages,
		registry: registry,
		tracker:  tracker,
		router: NewRouter(
			messages,
			&memParticipantRepo{byConversation: participants},
			noopConversationRepo{},
			registry,
			tracker,
		),
	}
}

func (f *routerFixture) chatSession(t *testing.T, conversationID int64, user *domain.User) (*Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	sess := NewSession(user, ConversationChannel(conversationID), conn)
	sess.Open(func(s *Session) {
		f.registry.Deregister(conversationID, s)
	})
	f.registry.Register(conversationID, sess)
	return sess, conn
}

func decodeChat(t *testing.T, frame []byte) ChatEvent {
	t.Helper()
	var ev ChatEvent
	require.NoError(t, json.Unmarshal(frame, &ev))
	return ev
}

func TestRouterRejectsEmptyMessages(t *testing.T) {
	f := newRouterFixture(map[int64][]int64{7: {1, 2}})
	sess, conn := f.chatSession(t, 7, testUser(1, "alice"))

	for _, body := range []string{"", "   ", "\n\t "} {
		_, err := f.router.Submit(context.Background(), sess, body)
		assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	}

	assert.Empty(t, f.messages.stored(), "nothing persisted")
	assert.Empty(t, conn.frames(), "nothing broadcast")
	assert.Equal(t, 0, f.tracker.Count(2, 7), "nothing counted")
}

func TestRouterRejectsUnreadFeedSessions(t *testing.T) {
	f := newRouterFixture(map[int64][]int64{})
	conn := newFakeConn()
	sess := NewSession(testUser(1, "alice"), UnreadFeedChannel(), conn)
	sess.Open(func(*Session) {})

	_, err := f.router.Submit(context.Background(), sess, "hello")
	assert.ErrorIs(t, err, domain.ErrProtocol)
	assert.Empty(t, f.messages.stored())
}

func TestRouterPersistenceFailureBlocksFanout(t *testing.T) {
	f := newRouterFixture(map[int64][]int64{7: {1, 2}})
	f.messages.createErr = errors.New("disk full")

	alice, aliceConn := f.chatSession(t, 7, testUser(1, "alice"))
	_, bobConn := f.chatSession(t, 7, testUser(2, "bob"))

	_, err := f.router.Submit(context.Background(), alice, "hello")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	assert.Empty(t, aliceConn.frames())
	assert.Empty(t, bobConn.frames())
	assert.Equal(t, 0, f.tracker.Count(2, 7))
}

func TestRouterDeliversToSenderAndRecipient(t *testing.T) {
	f := newRouterFixture(map[int64][]int64{7: {1, 2}})

	alice, aliceConn := f.chatSession(t, 7, testUser(1, "alice"))
	_, bobConn := f.chatSession(t, 7, testUser(2, "bob"))

	msg, err := f.router.Submit(context.Background(), alice, "hello")
	require.NoError(t, err)
	require.NotZero(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())

	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		frames := waitFrames(t, conn, 1)
		ev := decodeChat(t, frames[0])
		assert.Equal(t, "hello", ev.Message)
		assert.Equal(t, "alice", ev.SenderUsername)
		assert.Equal(t, msg.ID, ev.MessageID)
		assert.True(t, ev.Timestamp.Equal(msg.CreatedAt))
	}

	assert.Equal(t, 1, f.tracker.Count(2, 7), "recipient counts it")
	assert.Equal(t, 0, f.tracker.Count(1, 7), "sender does not")
}

func TestRouterDropsIdleConversationLocks(t *testing.T) {
	f := newRouterFixture(map[int64][]int64{7: {1, 2}, 8: {1, 3}})
	inSeven, _ := f.chatSession(t, 7, testUser(1, "alice"))
	inEight, _ := f.chatSession(t, 8, testUser(1, "alice"))

	for _, sess := range []*Session{inSeven, inEight} {
		_, err := f.router.Submit(context.Background(), sess, "hello")
		require.NoError(t, err)
	}

	f.router.mu.Lock()
	remaining := len(f.router.convLocks)
	f.router.mu.Unlock()
	assert.Zero(t, remaining, "lock entries must not outlive their holders")
}

func TestRouterSerializesConversationOrder(t *testing.T) {
	f := newRouterFixture(map[int64][]int64{7: {1, 2}})

	alice, _ := f.chatSession(t, 7, testUser(1, "alice"))
	bob, _ := f.chatSession(t, 7, testUser(2, "bob"))
	_, viewerConn := f.chatSession(t, 7, testUser(3, "carol"))

	const perSender = 20
	var wg sync.WaitGroup
	for _, sess := range []*Session{alice, bob} {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, err := f.router.Submit(context.Background(), s, "m")
				assert.NoError(t, err)
			}
		}(sess)
	}
	wg.Wait()

	frames := waitFrames(t, viewerConn, 2*perSender)
	var prev int64
	for _, frame := range frames {
		ev := decodeChat(t, frame)
		assert.Greater(t, ev.MessageID, prev, "observed order follows persisted ids")
		prev = ev.MessageID
	}
}
