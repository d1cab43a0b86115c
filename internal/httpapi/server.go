package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gemini-chat/internal/llm"
)

// Conversations is the slice of the conversation manager the HTTP
// layer needs.
type Conversations interface {
	SendMessage(ctx context.Context, sessionID, prompt string) (string, error)
	Reset(ctx context.Context, sessionID string) bool
	History(ctx context.Context, sessionID string) []llm.Message
}

// Server exposes the chat endpoints over HTTP.
type Server struct {
	conversations  Conversations
	storeAvailable func() bool
	server         *http.Server
	port           int
	startTime      time.Time
}

func New(conversations Conversations, storeAvailable func() bool, port int) *Server {
	return &Server{
		conversations:  conversations,
		storeAvailable: storeAvailable,
		port:           port,
		startTime:      time.Now(),
	}
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/chat/history", s.handleHistory)
	mux.HandleFunc("/chat/reset", s.handleReset)
	mux.HandleFunc("/api/status", s.handleStatus)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("🌐 Starting chat API server on http://localhost:%d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// corsMiddleware allows browser front-ends from any origin to call the
// API, mirroring the permissive development setup of the service.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
