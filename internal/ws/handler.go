package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"meetup/internal/domain"
	"meetup/internal/security"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

func authenticate(r *http.Request, tokens *security.TokenService, users domain.UserRepository) (*domain.User, error) {
	tokenStr, err := extractTokenFromWSRequest(r)
	if err != nil {
		return nil, err
	}
	username, err := tokens.Subject(tokenStr)
	if err != nil {
		return nil, wsAuthError{status: http.StatusUnauthorized, msg: "invalid token"}
	}
	user, err := users.GetByUsername(r.Context(), username)
	if err != nil || user == nil || !user.IsActive {
		return nil, wsAuthError{status: http.StatusUnauthorized, msg: "user not found or inactive"}
	}
	return user, nil
}

func writeAuthError(w http.ResponseWriter, err error) {
	if authErr, ok := err.(wsAuthError); ok {
		http.Error(w, authErr.msg, authErr.status)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// MakeChatHandler returns the HTTP handler for /ws/chat/{conversationID}/.
// It authenticates via bearer token (Authorization header or
// Sec-WebSocket-Protocol), rejects non-participants, then serves the
// conversation channel: inbound {"message": ...} frames go through the
// router, outbound ChatEvents arrive via the registry fan-out.
func MakeChatHandler(
	router *Router,
	registry *Registry,
	tokens *security.TokenService,
	users domain.UserRepository,
	participants domain.ParticipantRepository,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		user, err := authenticate(r, tokens, users)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		conversationID, err := strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
		if err != nil {
			http.Error(w, "invalid conversation id", http.StatusBadRequest)
			return
		}
		ok, err := participants.IsParticipant(r.Context(), conversationID, user.ID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "not a participant in this conversation", http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		sess := NewSession(user, ConversationChannel(conversationID), conn)
		sess.Open(func(s *Session) {
			registry.Deregister(conversationID, s)
		})
		registry.Register(conversationID, sess)
		defer sess.Close("connection closed")

		ctx := r.Context()
		for {
			data, err := sess.Receive()
			if err != nil {
				// Transport failure and client close look the same here;
				// either way the session is done.
				return
			}
			var in chatSubmission
			if err := json.Unmarshal(data, &in); err != nil {
				log.Printf("ws: malformed frame from %s on conversation %d: %v", user.Username, conversationID, err)
				sess.Close("protocol error")
				return
			}
			if _, err := router.Submit(ctx, sess, in.Message); err != nil {
				switch {
				case errors.Is(err, domain.ErrEmptyMessage):
					_ = sess.Send(newErrorEvent("message cannot be empty"))
				case errors.Is(err, domain.ErrProtocol):
					sess.Close("protocol error")
					return
				default:
					log.Printf("ws: submit from %s on conversation %d: %v", user.Username, conversationID, err)
					_ = sess.Send(newErrorEvent("failed to send message"))
				}
			}
		}
	}
}

// MakeUnreadHandler returns the HTTP handler for /ws/unread_counts/. The
// channel is push-only: the tracker performs a full-state sync on connect and
// pushes deltas afterwards; client frames are ignored.
func MakeUnreadHandler(
	tracker *Tracker,
	tokens *security.TokenService,
	users domain.UserRepository,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		user, err := authenticate(r, tokens, users)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		sess := NewSession(user, UnreadFeedChannel(), conn)
		sess.Open(func(s *Session) {
			tracker.DeregisterFeedSession(user.ID, s)
		})
		defer sess.Close("connection closed")

		if err := tracker.RegisterFeedSession(r.Context(), user.ID, sess); err != nil {
			log.Printf("ws: feed sync for %s: %v", user.Username, err)
			return
		}

		for {
			if _, err := sess.Receive(); err != nil {
				return
			}
			// No client events are defined on this channel.
		}
	}
}
