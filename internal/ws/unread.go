package ws

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// UnreadStore supplies the durable unread counts used for the full-state sync
// when a feed session connects.
type UnreadStore interface {
	UnreadCountsForUser(ctx context.Context, userID int64) (map[int64]int, error)
}

// Tracker maintains, per user, the conversation -> unread count mapping and
// the set of unread-feed sessions to push updates to. State is keyed by user
// with per-user locking; one busy user never serializes another. A user with
// no counts and no feed sessions is dropped from the map.
//
// Storage stays authoritative: counts are incremented as messages commit and
// replaced wholesale from the store whenever a feed session connects. Every
// storage sync bumps the state's generation; a pending count whose snapshot
// generation no longer matches re-reads the store instead of incrementing,
// because the intervening sync already saw its message.
type Tracker struct {
	store UnreadStore

	mu    sync.RWMutex
	users map[int64]*userState
}

type userState struct {
	mu     sync.Mutex
	gen    uint64
	gone   bool
	counts map[int64]int
	feeds  map[*Session]struct{}
}

func NewTracker(store UnreadStore) *Tracker {
	return &Tracker{
		store: store,
		users: make(map[int64]*userState),
	}
}

// lockUser returns the user's state with its lock held, creating the state on
// demand. A state pruned between lookup and lock is retried, so the caller
// never mutates an entry that has already left the map.
func (t *Tracker) lockUser(userID int64) *userState {
	for {
		t.mu.RLock()
		st := t.users[userID]
		t.mu.RUnlock()
		if st == nil {
			t.mu.Lock()
			if st = t.users[userID]; st == nil {
				st = &userState{
					counts: make(map[int64]int),
					feeds:  make(map[*Session]struct{}),
				}
				t.users[userID] = st
			}
			t.mu.Unlock()
		}
		st.mu.Lock()
		if st.gone {
			st.mu.Unlock()
			continue
		}
		return st
	}
}

// peekGen reads the user's sync generation without creating state. An absent
// user reads as generation zero, matching the fresh state lockUser creates.
func (t *Tracker) peekGen(userID int64) uint64 {
	t.mu.RLock()
	st := t.users[userID]
	t.mu.RUnlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.gen
}

// prune drops the user's state once it holds no counts and no feed sessions.
func (t *Tracker) prune(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.users[userID]
	if st == nil {
		return
	}
	st.mu.Lock()
	if len(st.counts) == 0 && len(st.feeds) == 0 {
		st.gone = true
		delete(t.users, userID)
	}
	st.mu.Unlock()
}

// PendingCount carries one message's unread increments between persistence
// and commit. BeginMessage runs before the message is persisted, Commit
// after; a pending count that is never committed has no effect, so a failed
// persist counts nothing.
type PendingCount struct {
	tracker        *Tracker
	conversationID int64
	recipients     []pendingRecipient
}

type pendingRecipient struct {
	userID int64
	gen    uint64
}

// BeginMessage snapshots each recipient's sync generation, skipping the
// sender. The snapshot lets Commit detect a feed sync racing the persist: a
// sync that ran in between has already read the message from storage, and
// incrementing on top would count it twice.
func (t *Tracker) BeginMessage(conversationID, senderID int64, participantIDs []int64) *PendingCount {
	p := &PendingCount{tracker: t, conversationID: conversationID}
	for _, pid := range participantIDs {
		if pid == senderID {
			continue
		}
		p.recipients = append(p.recipients, pendingRecipient{userID: pid, gen: t.peekGen(pid)})
	}
	return p
}

// Commit applies the now-durable message to every recipient and pushes the
// new count to their open feed sessions. A recipient whose generation moved
// since BeginMessage gets the count re-read from storage instead of
// incremented; that read runs after the persist, so the message is counted
// exactly once either way.
func (p *PendingCount) Commit(ctx context.Context) {
	for _, rcpt := range p.recipients {
		st := p.tracker.lockUser(rcpt.userID)
		if st.gen != rcpt.gen {
			st.mu.Unlock()
			p.tracker.refresh(ctx, rcpt.userID, p.conversationID)
			continue
		}
		st.counts[p.conversationID]++
		count := st.counts[p.conversationID]
		sessions := feedSnapshot(st)
		st.mu.Unlock()

		push(sessions, newUnreadEvent(p.conversationID, count))
	}
}

// refresh replaces one conversation's count from storage and pushes it. The
// state lock is held across the store read so the sync is atomic with
// respect to other pending counts.
func (t *Tracker) refresh(ctx context.Context, userID, conversationID int64) {
	st := t.lockUser(userID)
	counts, err := t.store.UnreadCountsForUser(ctx, userID)
	if err != nil {
		st.mu.Unlock()
		log.Printf("ws: refresh unread counts for user %d: %v", userID, err)
		return
	}

	st.gen++
	count := counts[conversationID]
	if count == 0 {
		delete(st.counts, conversationID)
	} else {
		st.counts[conversationID] = count
	}
	sessions := feedSnapshot(st)
	st.mu.Unlock()

	push(sessions, newUnreadEvent(conversationID, count))
	t.prune(userID)
}

// OnConversationRead zeroes the user's count for the conversation and pushes
// the zeroed update. Increments already applied stay reset; increments that
// commit after the read win, since a read cannot un-read a later message.
func (t *Tracker) OnConversationRead(userID, conversationID int64) {
	st := t.lockUser(userID)
	delete(st.counts, conversationID)
	sessions := feedSnapshot(st)
	st.mu.Unlock()

	push(sessions, newUnreadEvent(conversationID, 0))
	t.prune(userID)
}

// RegisterFeedSession adds a session to the user's push set and performs the
// initial full-state sync: the in-memory counts are replaced from storage and
// every conversation with a non-zero count is sent to the new session. The
// state lock is held across the store read so the replace cannot clobber a
// count committed in between.
func (t *Tracker) RegisterFeedSession(ctx context.Context, userID int64, s *Session) error {
	st := t.lockUser(userID)
	counts, err := t.store.UnreadCountsForUser(ctx, userID)
	if err != nil {
		st.mu.Unlock()
		t.prune(userID)
		return fmt.Errorf("sync unread counts: %w", err)
	}

	st.gen++
	st.counts = make(map[int64]int, len(counts))
	for convID, count := range counts {
		if count > 0 {
			st.counts[convID] = count
		}
	}
	st.feeds[s] = struct{}{}
	initial := make(map[int64]int, len(st.counts))
	for convID, count := range st.counts {
		initial[convID] = count
	}
	st.mu.Unlock()

	for convID, count := range initial {
		if err := s.Send(newUnreadEvent(convID, count)); err != nil {
			return fmt.Errorf("initial sync push: %w", err)
		}
	}
	return nil
}

// DeregisterFeedSession removes a session from the user's push set. No-op for
// unknown sessions; stored counts are untouched.
func (t *Tracker) DeregisterFeedSession(userID int64, s *Session) {
	t.mu.RLock()
	st := t.users[userID]
	t.mu.RUnlock()
	if st == nil {
		return
	}
	st.mu.Lock()
	delete(st.feeds, s)
	st.mu.Unlock()
	t.prune(userID)
}

// Count reports the tracked unread count for one user and conversation.
func (t *Tracker) Count(userID, conversationID int64) int {
	t.mu.RLock()
	st := t.users[userID]
	t.mu.RUnlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.counts[conversationID]
}

func feedSnapshot(st *userState) []*Session {
	sessions := make([]*Session, 0, len(st.feeds))
	for s := range st.feeds {
		sessions = append(sessions, s)
	}
	return sessions
}

// push delivers the event to each session, closing the ones that cannot take
// it. Runs outside any tracker lock.
func push(sessions []*Session, event UnreadEvent) {
	for _, s := range sessions {
		if err := s.Send(event); err != nil {
			s.Close("unread push failed")
		}
	}
}
