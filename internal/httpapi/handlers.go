package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"gemini-chat/internal/history"
)

type promptRequest struct {
	PerguntaCliente string `json:"pergunta_cliente"`
	SessionID       string `json:"session_id"`
}

type historyEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]interface{}{
		"status": "error",
		"detail": detail,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido.")
		return
	}
	if req.PerguntaCliente == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "A pergunta e o ID da sessão não podem estar vazios.")
		return
	}

	answer, err := s.conversations.SendMessage(r.Context(), req.SessionID, req.PerguntaCliente)
	if err != nil {
		// Internal error detail never reaches the caller.
		log.Printf("❌ chat request failed for session %s: %v", req.SessionID, err)
		switch {
		case errors.Is(err, history.ErrServiceUnavailable):
			writeError(w, http.StatusInternalServerError, "Erro de Serviço: o armazenamento de histórico não está acessível.")
		case errors.Is(err, history.ErrGatewayFailure):
			writeError(w, http.StatusInternalServerError, "Ocorreu um erro interno no servidor durante a comunicação.")
		default:
			writeError(w, http.StatusInternalServerError, "Ocorreu um erro interno no servidor.")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "success",
		"session_id":  req.SessionID,
		"resposta_ia": answer,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "O ID da sessão não pode estar vazio.")
		return
	}

	msgs := s.conversations.History(r.Context(), sessionID)
	entries := make([]historyEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, historyEntry{Role: m.Role, Text: m.Text})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "success",
		"session_id": sessionID,
		"history":    entries,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "O ID da sessão não pode estar vazio.")
		return
	}

	message := fmt.Sprintf("Sessão %s não encontrada. Nenhuma ação necessária.", sessionID)
	if s.conversations.Reset(r.Context(), sessionID) {
		message = fmt.Sprintf("Sessão %s resetada com sucesso.", sessionID)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": message,
	})
}

// handleStatus is the health check endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	storeState := "connected"
	if s.storeAvailable != nil && !s.storeAvailable() {
		storeState = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "gemini-chat",
		"store":     storeState,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).String(),
	})
}
