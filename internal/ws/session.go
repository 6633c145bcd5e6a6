package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"meetup/internal/domain"
)

// ErrSessionClosed is returned by send operations on a session that has left
// the Open state.
var ErrSessionClosed = errors.New("session is closed")

// sendQueueSize bounds the per-session outbound queue. A session that cannot
// drain this many events is treated as dead and closed.
const sendQueueSize = 64

// ChannelKind distinguishes the two logical topics a session can subscribe to.
type ChannelKind int

const (
	ChannelConversation ChannelKind = iota
	ChannelUnreadFeed
)

// Channel identifies what a session is bound to: one conversation's messages,
// or the user's aggregate unread-count feed.
type Channel struct {
	Kind           ChannelKind
	ConversationID int64
}

func ConversationChannel(id int64) Channel {
	return Channel{Kind: ChannelConversation, ConversationID: id}
}

func UnreadFeedChannel() Channel {
	return Channel{Kind: ChannelUnreadFeed}
}

// State is the connection state of a session. Transitions only move forward;
// a new connection always creates a new session.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Conn is the subset of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session represents one client's persistent connection to one channel. All
// outbound events pass through a single writer goroutine, so sends are
// attempted in the order they were enqueued. Close is idempotent and triggers
// the deregistration callback exactly once, on every exit path.
type Session struct {
	ID      string
	User    *domain.User
	Channel Channel

	conn Conn
	send chan []byte
	done chan struct{}

	mu      sync.Mutex
	state   State
	onClose func(*Session)

	closeOnce sync.Once
}

// NewSession wraps a connection in a session bound to the given channel. The
// session starts in the Connecting state; call Open to start delivering.
func NewSession(user *domain.User, channel Channel, conn Conn) *Session {
	return &Session{
		ID:      uuid.NewString(),
		User:    user,
		Channel: channel,
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		state:   StateConnecting,
	}
}

// Open transitions the session to Open and starts the writer goroutine.
// onClose runs exactly once when the session closes, no matter how.
func (s *Session) Open(onClose func(*Session)) {
	s.mu.Lock()
	s.state = StateOpen
	s.onClose = onClose
	s.mu.Unlock()
	go s.writeLoop()
}

// State reports the session's current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send marshals the event and enqueues it for ordered delivery. It never
// blocks: a closed session or a full queue yields an error, and the caller
// decides whether that kills the session.
func (s *Session) Send(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.sendRaw(data)
}

func (s *Session) sendRaw(data []byte) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.mu.Unlock()

	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return errors.New("session send queue full")
	}
}

// Receive blocks until the next client frame arrives or the connection fails.
// A transport failure is indistinguishable from a client close to callers.
func (s *Session) Receive() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

// Close tears down the connection and fires the deregistration callback.
// Safe to call from any goroutine, any number of times.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		s.mu.Unlock()

		close(s.done)
		_ = s.conn.Close()

		s.mu.Lock()
		s.state = StateClosed
		onClose := s.onClose
		s.mu.Unlock()

		log.Printf("ws: session %s closed: %s", s.ID, reason)
		if onClose != nil {
			onClose(s)
		}
	})
}

func (s *Session) writeLoop() {
	for {
		select {
		case data := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close("write failed")
				return
			}
		case <-s.done:
			return
		}
	}
}
