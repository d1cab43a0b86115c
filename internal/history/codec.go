package history

import (
	"encoding/json"
	"fmt"

	"gemini-chat/internal/llm"
)

// Persisted record layout: {"role":"user","parts":[{"text":"..."}]}.
// Only the first part is meaningful; the slice form is kept for
// compatibility with already-persisted logs.
type record struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

func validRole(role string) bool {
	switch role {
	case llm.RoleUser, llm.RoleModel, llm.RoleSystem:
		return true
	}
	return false
}

// EncodeMessage serializes a message into its durable string form.
func EncodeMessage(m llm.Message) (string, error) {
	if !validRole(m.Role) {
		return "", fmt.Errorf("cannot encode message with role %q", m.Role)
	}
	data, err := json.Marshal(record{Role: m.Role, Parts: []part{{Text: m.Text}}})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return string(data), nil
}

// DecodeMessage parses a durable record back into a message. A record
// with no parts (or a null/empty text) decodes to an empty text rather
// than failing, so partially populated legacy entries stay readable.
func DecodeMessage(s string) (llm.Message, error) {
	var rec record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return llm.Message{}, fmt.Errorf("malformed history record: %w", err)
	}
	if !validRole(rec.Role) {
		return llm.Message{}, fmt.Errorf("history record has unknown role %q", rec.Role)
	}
	text := ""
	if len(rec.Parts) > 0 {
		text = rec.Parts[0].Text
	}
	return llm.Message{Role: rec.Role, Text: text}, nil
}
