package llm

import "errors"

var (
	// ErrModelUnavailable is returned when no model is configured for a
	// requested role. Not retryable.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrTransient is returned for provider-side failures that may succeed on
	// retry (rate limits, 5xx responses, network errors). Callers retry a
	// bounded number of times before surfacing it.
	ErrTransient = errors.New("transient provider error")
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	// Default is 0.7 if not specified.
	Temperature float32
}
