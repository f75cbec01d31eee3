package assist

import "context"

// Provider is one interchangeable generative-text backend.
type Provider interface {
	// Name is the logical provider name used in logs and metrics.
	Name() string

	// Call sends a single prompt and returns the generated text.
	// Implementations must honor ctx cancellation.
	Call(ctx context.Context, prompt Prompt) (string, error)
}

// Prompt is the provider-neutral request shape.
type Prompt struct {
	// System carries the system instructions.
	System string

	// Messages is the conversation, oldest first. The last message is the task.
	Messages []Message

	// MaxTokens caps the response length. Zero uses the provider default.
	MaxTokens int
}

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role is the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NewPrompt builds a single-turn prompt.
func NewPrompt(task, system string) Prompt {
	return Prompt{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: task}},
	}
}

const defaultMaxTokens = 1024

func maxTokens(p Prompt) int {
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return defaultMaxTokens
}
