package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// JWT secret from environment variable or fallback
func getJWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("dev_secret_change_in_production")
}

var jwtSecret = getJWTSecret()

func main() {
	cfg := loadConfig()
	jwtSecret = []byte(cfg.JWTSecret)

	initDB(cfg.DatabaseURL)

	mux := http.NewServeMux()

	// Core auth & viewer endpoints
	mux.Handle("/register", registerHandler(db))
	mux.Handle("/login", loginHandler(db))
	mux.Handle("/me", meHandler(db))
	mux.Handle("/me/profile", meProfileHandler(db)) // GET, PUT/PATCH

	// Ping: mark this user as online "now"
	mux.Handle("/me/ping", mePingHandler(db)) // POST

	// Directory and per-profile dispatcher
	mux.Handle("/profiles", directoryHandler(db)) // GET /profiles?role=&program=&...
	mux.Handle("/profiles/", profilesDispatcher(db))
	// /profiles/{id}            GET profile
	// /profiles/{id}/followers  GET follower list + count
	// /profiles/{id}/follow     POST/DELETE follow toggle
	// /profiles/{id}/connect    POST mentor-team connection

	// Connections & pairing suggestions
	mux.Handle("/connections", connectionsHandler(db)) // GET /connections
	mux.Handle("/suggestions", suggestionsHandler(db)) // GET /suggestions

	// WebSocket chat endpoint
	mux.Handle("/ws/chat", wsChatHandler(db))

	// For fetching message history
	mux.Handle("/chats/", getChatHistoryHandler(db))

	// Chat summary for sidebar ordering + unread badge
	mux.Handle("/chats/summary", chatSummaryHandler(db)) // GET

	// Mark messages from peer as read in the active chat
	mux.Handle("/chats/read", chatsMarkReadHandler(db)) // POST /chats/read?peer_id=123

	// Health check endpoint for Docker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	handler := withCORS(DataLoaderMiddleware(db)(mux))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting outmentor backend on %s (env: %s)", cfg.HTTPAddr, cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("Shutting down gracefully...")
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	}
}
