// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI GPT-4o,
// Anthropic Claude, or a local Ollama instance) and exposes a single blocking
// completion call. Both the conversation model and the safety validator are
// reached through this interface; they differ only in the prompts and sampling
// parameters carried by [CompletionRequest].
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"

	"github.com/rafiqhealth/rafiq/pkg/types"
)

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages must
// be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is typically
	// from the "user" role and drives the response.
	Messages []types.Message

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history. Providers prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. nil means
	// "use the provider default". A non-nil zero requests greedy decoding and is
	// always forwarded to the backend.
	Temperature *float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// JSONOutput asks for a single JSON object. Backends with a native JSON
	// mode enable it; the others receive an extra system instruction.
	JSONOutput bool
}

// CompletionResponse is returned by [Provider.Complete].
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage

	// Truncated is set when generation stopped at MaxTokens. Backends that do
	// not report a finish reason leave it false.
	Truncated bool
}

// ErrRefused is wrapped by providers when the model declines to answer
// through a dedicated refusal channel rather than ordinary content.
var ErrRefused = errors.New("llm: model refused the request")

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must return promptly when ctx is cancelled.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error if the request fails, if the backend returns no choices,
	// or if ctx is cancelled before the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
