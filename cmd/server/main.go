package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetup/internal/config"
	"meetup/internal/httpserver"
	"meetup/internal/security"
	"meetup/internal/store"
	"meetup/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, repos, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	tokenSvc := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)
	passwordHasher := security.NewPasswordHasher(0)

	// Messaging core: the registry fans conversation traffic out to live
	// sessions, the tracker owns unread counts, the router ties them to
	// persistence.
	registry := ws.NewRegistry()
	tracker := ws.NewTracker(repos.Messages)
	msgRouter := ws.NewRouter(repos.Messages, repos.Participants, repos.Conversations, registry, tracker)

	router := httpserver.NewRouter(cfg, repos, tokenSvc, passwordHasher, registry, tracker, msgRouter)

	srv := &http.Server{
		Addr:        cfg.HTTPAddr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Starting %s on %s\n", cfg.AppName, cfg.HTTPAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
