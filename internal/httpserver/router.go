package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"meetup/internal/config"
	"meetup/internal/security"
	"meetup/internal/service"
	"meetup/internal/store"
	"meetup/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and
// middleware, including the two WebSocket endpoints of the messaging core.
func NewRouter(
	cfg *config.Config,
	repos store.Repositories,
	tokenSvc *security.TokenService,
	passwordHasher *security.PasswordHasher,
	registry *ws.Registry,
	tracker *ws.Tracker,
	msgRouter *ws.Router,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRFToken"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authSvc := service.NewAuthService(repos.Users, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(repos.Users)
	convSvc := service.NewConversationService(repos.Conversations, repos.Participants, repos.Messages, repos.Users, tracker)
	activitySvc := service.NewActivityService(repos.Activities)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})
		r.Get("/csrf", handleCSRFToken())

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, repos.Users))
			// The HTTP surface is the plain request/response side; any
			// timeout here must not apply to the upgraded sockets below.
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/auth/logout", handleLogout(authSvc))
			r.Get("/auth/me", handleMe())

			r.Get("/users", handleListUsers(userSvc))

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", handleCreateConversation(convSvc))
				r.Get("/", handleListConversations(convSvc))
				r.Get("/{conversationID}", handleGetConversation(convSvc))
				r.Get("/{conversationID}/messages", handleGetMessages(convSvc))
				r.Post("/{conversationID}/read", handleMarkConversationRead(convSvc))
			})

			r.Post("/activities", handleCreateActivity(activitySvc))
		})
	})

	// WebSocket endpoints; the paths, trailing slash included, are fixed by
	// the deployed web client.
	r.Get("/ws/chat/{conversationID}/", ws.MakeChatHandler(msgRouter, registry, tokenSvc, repos.Users, repos.Participants, cfg.CORSOrigins))
	r.Get("/ws/unread_counts/", ws.MakeUnreadHandler(tracker, tokenSvc, repos.Users, cfg.CORSOrigins))

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
