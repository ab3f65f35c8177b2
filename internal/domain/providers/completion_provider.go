package providers

import "context"

// ChatRole identifies the author of a conversation turn.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one prior exchange half passed to the generative backend.
type ChatTurn struct {
	Role    ChatRole
	Content string
}

// CompletionRequest carries everything the generative backend needs for a
// single completion: composed system prompt, prior turns oldest-first, and
// the new user message last.
type CompletionRequest struct {
	System      string
	Turns       []ChatTurn
	Temperature float64
	MaxTokens   int
}

// StreamHandler receives incremental text chunks during a streaming
// completion. Returning an error stops the stream.
type StreamHandler func(chunk string) error

// CompletionProvider is the generative text backend.
type CompletionProvider interface {
	// Complete runs a non-streaming completion and returns the full text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// StreamCompletion runs a streaming completion, invoking handler for
	// each text chunk as it arrives.
	StreamCompletion(ctx context.Context, req CompletionRequest, handler StreamHandler) error
}

// EmbeddingProvider computes embedding vectors for free text.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
