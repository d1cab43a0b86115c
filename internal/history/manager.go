package history

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gemini-chat/internal/llm"
)

var (
	// ErrServiceUnavailable is returned by SendMessage while the store
	// is degraded; no model call is made in that case.
	ErrServiceUnavailable = errors.New("history store is not accessible")
	// ErrGatewayFailure wraps model gateway errors. When it is
	// returned, nothing has been written to the store.
	ErrGatewayFailure = errors.New("model gateway request failed")
)

// Shown in place of the history when the store is unreachable.
const storeUnavailableNotice = "Erro: o armazenamento de histórico não está conectado."

// Manager owns the conversation business rules: what gets appended,
// which roles are forwarded to the model, and how the length bound is
// applied. All storage access goes through the Store contract.
type Manager struct {
	store             Store
	gateway           llm.Gateway
	systemInstruction string
}

func NewManager(store Store, gateway llm.Gateway, systemInstruction string) *Manager {
	return &Manager{store: store, gateway: gateway, systemInstruction: systemInstruction}
}

// SendMessage submits the session's history plus the new prompt to the
// model and, on success, appends the two-message exchange atomically.
// A gateway failure writes nothing, so a failed exchange never
// corrupts the log.
func (m *Manager) SendMessage(ctx context.Context, sessionID, prompt string) (string, error) {
	raw, err := m.store.ReadRange(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return "", ErrServiceUnavailable
		}
		return "", fmt.Errorf("failed to read history: %w", err)
	}

	// Only user/model entries are forwarded; stored system-role or
	// malformed records are dropped silently as a safety net.
	contents := m.decodeConversation(sessionID, raw)
	contents = append(contents, llm.Message{Role: llm.RoleUser, Text: prompt})

	resp, err := m.gateway.Generate(ctx, contents, m.systemInstruction)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayFailure, err)
	}

	userRec, err := EncodeMessage(llm.Message{Role: llm.RoleUser, Text: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt: %w", err)
	}
	modelRec, err := EncodeMessage(llm.Message{Role: llm.RoleModel, Text: resp.Content})
	if err != nil {
		return "", fmt.Errorf("failed to encode response: %w", err)
	}
	if err := m.store.AppendAndTrim(ctx, sessionID, []string{userRec, modelRec}); err != nil {
		return "", fmt.Errorf("failed to persist exchange: %w", err)
	}
	return resp.Content, nil
}

// Reset removes the session's entire log. It reports whether a log
// existed; degraded mode yields false.
func (m *Manager) Reset(ctx context.Context, sessionID string) bool {
	deleted, err := m.store.Delete(ctx, sessionID)
	if err != nil {
		log.Printf("failed to reset session %s: %v", sessionID, err)
		return false
	}
	if deleted {
		log.Printf("🧹 chat session %s reset", sessionID)
	}
	return deleted
}

// History returns the session's transcript in order, with system-role
// entries filtered out. While the store is degraded it returns a
// single synthetic system entry instead of failing the call.
func (m *Manager) History(ctx context.Context, sessionID string) []llm.Message {
	raw, err := m.store.ReadRange(ctx, sessionID)
	if err != nil {
		return []llm.Message{{Role: llm.RoleSystem, Text: storeUnavailableNotice}}
	}
	return m.decodeConversation(sessionID, raw)
}

// decodeConversation decodes the stored records, keeping only
// user/model entries and preserving their order. Undecodable records
// never abort the whole read.
func (m *Manager) decodeConversation(sessionID string, raw []string) []llm.Message {
	out := make([]llm.Message, 0, len(raw))
	for _, entry := range raw {
		msg, err := DecodeMessage(entry)
		if err != nil {
			log.Printf("skipping bad history record in session %s: %v", sessionID, err)
			continue
		}
		if msg.Role != llm.RoleUser && msg.Role != llm.RoleModel {
			continue
		}
		out = append(out, msg)
	}
	return out
}
