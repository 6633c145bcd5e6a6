package httpserver

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetup/internal/domain"
	"meetup/internal/service"
)

type memActivityRepo struct {
	created []*domain.Activity
}

func (r *memActivityRepo) Create(_ context.Context, a *domain.Activity) error {
	a.ID = int64(len(r.created) + 1)
	r.created = append(r.created, a)
	return nil
}

func activityForm(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func validActivityFields() map[string]string {
	return map[string]string{
		"title":            "Morning run",
		"description":      "Easy 5k around the park",
		"category":         "sports",
		"date_time":        "2026-09-12T08:00",
		"location":         "Riverside park",
		"max_participants": "10",
	}
}

func newActivityRequest(t *testing.T, fields map[string]string, csrfCookie, csrfHeader string) *http.Request {
	t.Helper()
	body, contentType := activityForm(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
	req.Header.Set("Content-Type", contentType)
	if csrfCookie != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: csrfCookie})
	}
	if csrfHeader != "" {
		req.Header.Set("X-CSRFToken", csrfHeader)
	}
	user := &domain.User{ID: 1, Username: "alice", IsActive: true}
	return req.WithContext(WithUser(req.Context(), user))
}

func TestCreateActivitySuccessRedirects(t *testing.T) {
	repo := &memActivityRepo{}
	handler := handleCreateActivity(service.NewActivityService(repo))

	req := newActivityRequest(t, validActivityFields(), "tok-1", "tok-1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/activities", rec.Header().Get("Location"))

	require.Len(t, repo.created, 1)
	a := repo.created[0]
	assert.Equal(t, int64(1), a.UserID)
	assert.Equal(t, "Morning run", a.Title)
	assert.Equal(t, 10, a.MaxParticipants)
	assert.Equal(t, "active", a.Status)
}

func TestCreateActivityCSRFRejected(t *testing.T) {
	cases := []struct {
		name   string
		cookie string
		header string
	}{
		{"MissingCookie", "", "tok-1"},
		{"MissingHeader", "tok-1", ""},
		{"Mismatch", "tok-1", "tok-2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &memActivityRepo{}
			handler := handleCreateActivity(service.NewActivityService(repo))

			req := newActivityRequest(t, validActivityFields(), tc.cookie, tc.header)
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Contains(t, rec.Body.String(), "CSRF")
			assert.Empty(t, repo.created)
		})
	}
}

func TestCreateActivityValidationFailure(t *testing.T) {
	repo := &memActivityRepo{}
	handler := handleCreateActivity(service.NewActivityService(repo))

	fields := validActivityFields()
	fields["title"] = "   "
	req := newActivityRequest(t, fields, "tok-1", "tok-1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "message")
	assert.Empty(t, repo.created)
}

func TestCreateActivityBadDateTime(t *testing.T) {
	repo := &memActivityRepo{}
	handler := handleCreateActivity(service.NewActivityService(repo))

	fields := validActivityFields()
	fields["date_time"] = "next tuesday"
	req := newActivityRequest(t, fields, "tok-1", "tok-1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, repo.created)
}

func TestCreateActivityRequiresUser(t *testing.T) {
	repo := &memActivityRepo{}
	handler := handleCreateActivity(service.NewActivityService(repo))

	body, contentType := activityForm(t, validActivityFields())
	req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
