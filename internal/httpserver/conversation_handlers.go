package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meetup/internal/domain"
	"meetup/internal/service"
)

type conversationCreateRequest struct {
	ParticipantID int64 `json:"participant_id"`
}

func handleCreateConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req conversationCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.ParticipantID == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "participant_id is required"})
			return
		}

		conv, err := convSvc.StartDirect(r.Context(), user.ID, req.ParticipantID)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, domain.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	}
}

func handleListConversations(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		summaries, err := convSvc.ListWithUnread(r.Context(), user.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

// handleGetConversation serves the conversation page payload and marks the
// conversation read for the caller.
func handleGetConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		conversationID, err := conversationIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}

		detail, err := convSvc.Detail(r.Context(), conversationID, user.ID)
		if err != nil {
			writeConversationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// handleGetMessages returns the conversation history and, like the original
// conversation page, marks everything read as a side effect of viewing it.
func handleGetMessages(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		conversationID, err := conversationIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}

		views, err := convSvc.OpenConversation(r.Context(), conversationID, user.ID)
		if err != nil {
			writeConversationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleMarkConversationRead(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		conversationID, err := conversationIDParam(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
			return
		}

		if err := convSvc.MarkRead(r.Context(), conversationID, user.ID); err != nil {
			writeConversationError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func conversationIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "conversationID"), 10, 64)
}

func writeConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversation not found"})
	case errors.Is(err, domain.ErrNotParticipant):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
