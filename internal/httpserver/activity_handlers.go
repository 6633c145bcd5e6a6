package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"meetup/internal/service"
)

const csrfCookieName = "csrftoken"

// handleCSRFToken issues the double-submit CSRF cookie the activity form
// echoes back in the X-CSRFToken header.
func handleCSRFToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, map[string]string{"csrf_token": token})
	}
}

// handleCreateActivity accepts the multipart create-activity form. On success
// the client is redirected to the activities page; on failure it gets a JSON
// body with a message field, which the form script surfaces inline.
func handleCreateActivity(activitySvc *service.ActivityService) http.HandlerFunc {
	const maxFormSize = 10 << 20

	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" || r.Header.Get("X-CSRFToken") != cookie.Value {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": "CSRF token missing or invalid"})
			return
		}

		if err := r.ParseMultipartForm(maxFormSize); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid form submission"})
			return
		}

		maxParticipants, _ := strconv.Atoi(r.FormValue("max_participants"))
		dateTime, err := parseFormDateTime(r.FormValue("date_time"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid date_time"})
			return
		}

		_, err = activitySvc.CreateActivity(r.Context(), service.ActivityCreateInput{
			Title:           r.FormValue("title"),
			Description:     r.FormValue("description"),
			Category:        r.FormValue("category"),
			DateTime:        dateTime,
			Location:        r.FormValue("location"),
			MaxParticipants: maxParticipants,
		}, user.ID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}

		http.Redirect(w, r, "/activities", http.StatusSeeOther)
	}
}

// parseFormDateTime accepts both the datetime-local input format and RFC 3339.
func parseFormDateTime(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
