package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Registry maps a conversation to the set of sessions currently viewing it.
// Each conversation has its own lock; register, deregister and broadcast on
// one conversation are linearizable with respect to each other, while
// different conversations proceed fully in parallel.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]*room
}

type room struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[int64]*room)}
}

// Register adds a session to the conversation's fan-out set. The registry
// lock is held across the insert: releasing it between lookup and insert
// would let a concurrent last-member Deregister drop the room and strand the
// new session on an orphaned room object.
func (r *Registry) Register(conversationID int64, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[conversationID]
	if !ok {
		rm = &room{sessions: make(map[*Session]struct{})}
		r.rooms[conversationID] = rm
	}
	rm.mu.Lock()
	rm.sessions[s] = struct{}{}
	rm.mu.Unlock()
}

// Deregister removes a session from the conversation's fan-out set. It is a
// no-op when the session is not registered, so duplicate close signals are
// harmless. Empty rooms are dropped.
func (r *Registry) Deregister(conversationID int64, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[conversationID]
	if !ok {
		return
	}
	rm.mu.Lock()
	delete(rm.sessions, s)
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()
	if empty {
		delete(r.rooms, conversationID)
	}
}

// Broadcast delivers the event to every session currently registered for the
// conversation. A conversation with no viewers drops the event; persistence,
// not fan-out, is the durability mechanism. Sessions that cannot accept the
// event are closed after the fan-out completes.
func (r *Registry) Broadcast(conversationID int64, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws: marshal broadcast for conversation %d: %v", conversationID, err)
		return
	}

	r.mu.RLock()
	rm := r.rooms[conversationID]
	r.mu.RUnlock()
	if rm == nil {
		return
	}

	var failed []*Session
	rm.mu.Lock()
	for s := range rm.sessions {
		if err := s.sendRaw(data); err != nil {
			failed = append(failed, s)
		}
	}
	rm.mu.Unlock()

	// Closing inside the room lock would deadlock on deregistration.
	for _, s := range failed {
		s.Close("broadcast delivery failed")
	}
}

// SessionCount reports how many sessions are registered for a conversation.
func (r *Registry) SessionCount(conversationID int64) int {
	r.mu.RLock()
	rm := r.rooms[conversationID]
	r.mu.RUnlock()
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.sessions)
}
