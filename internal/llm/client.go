package llm

import "context"

// Roles used in conversation messages. The Gemini API names the
// assistant side "model"; the other providers translate as needed.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

type Message struct {
	Role string
	Text string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Gateway submits an ordered conversation plus a system instruction to
// a model provider. The system instruction is passed out-of-band and is
// never part of the message list. Implementations must be safe for
// concurrent use.
type Gateway interface {
	Generate(ctx context.Context, messages []Message, systemInstruction string) (Response, error)
}
